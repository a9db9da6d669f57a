package validate

import (
	"errors"
	"strings"
	"testing"
)

func TestTrimNonEmpty(t *testing.T) {
	got, err := TrimNonEmpty("app", "  web-api  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "web-api" {
		t.Errorf("expected web-api, got %q", got)
	}
}

func TestTrimNonEmpty_WhitespaceOnly(t *testing.T) {
	_, err := TrimNonEmpty("app", "   ")
	if err == nil {
		t.Fatal("expected error for whitespace-only value")
	}
	if !strings.Contains(err.Error(), "app cannot be empty") {
		t.Errorf("expected message naming the parameter, got %q", err.Error())
	}
	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatal("expected a *validate.Error")
	}
	if verr.Param != "app" {
		t.Errorf("expected param app, got %q", verr.Param)
	}
}

func TestNormalizeEnvironment_CaseAndWhitespace(t *testing.T) {
	for _, input := range []string{" STAGING ", "staging", "Staging"} {
		got, err := NormalizeEnvironment("environment", input)
		if err != nil {
			t.Fatalf("NormalizeEnvironment(%q): unexpected error: %v", input, err)
		}
		if got != "staging" {
			t.Errorf("NormalizeEnvironment(%q) = %q, want staging", input, got)
		}
	}
}

func TestNormalizeEnvironment_EmptyMeansAll(t *testing.T) {
	got, err := NormalizeEnvironment("environment", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "" {
		t.Errorf("expected empty pass-through, got %q", got)
	}
}

func TestNormalizeEnvironment_Unknown(t *testing.T) {
	_, err := NormalizeEnvironment("environment", "qa")
	if err == nil {
		t.Fatal("expected error for unknown environment")
	}
	// The message enumerates the whitelist, sorted, so callers can self-correct.
	if !strings.Contains(err.Error(), "dev, prod, staging, uat") {
		t.Errorf("expected sorted environment list in message, got %q", err.Error())
	}
}

func TestValidatePromotionPath_Totality(t *testing.T) {
	envs := []string{EnvDev, EnvStaging, EnvUAT, EnvProd}
	allowed := map[[2]string]bool{
		{EnvDev, EnvStaging}: true,
		{EnvStaging, EnvUAT}: true,
		{EnvUAT, EnvProd}:    true,
	}

	accepted := 0
	for _, from := range envs {
		for _, to := range envs {
			err := ValidatePromotionPath(from, to)
			if allowed[[2]string{from, to}] {
				if err != nil {
					t.Errorf("ValidatePromotionPath(%s, %s): unexpected error: %v", from, to, err)
				}
				accepted++
			} else if err == nil {
				t.Errorf("ValidatePromotionPath(%s, %s): expected rejection", from, to)
			}
		}
	}
	if accepted != 3 {
		t.Errorf("expected exactly 3 accepted pairs, got %d", accepted)
	}
}

func TestValidatePromotionPath_SameEnvironment(t *testing.T) {
	err := ValidatePromotionPath(EnvStaging, EnvStaging)
	if err == nil {
		t.Fatal("expected error for same-environment promotion")
	}
	if !strings.Contains(err.Error(), "cannot promote to same environment") {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestValidatePromotionPath_SkipNamesNextHop(t *testing.T) {
	err := ValidatePromotionPath(EnvDev, EnvUAT)
	if err == nil {
		t.Fatal("expected error for skipping an environment")
	}
	if !strings.Contains(err.Error(), "invalid promotion path") {
		t.Errorf("expected invalid promotion path message, got %q", err.Error())
	}
	if !strings.Contains(err.Error(), EnvStaging) {
		t.Errorf("expected message naming staging as the next hop, got %q", err.Error())
	}
}

func TestValidatePromotionPath_Backward(t *testing.T) {
	err := ValidatePromotionPath(EnvProd, EnvStaging)
	if err == nil {
		t.Fatal("expected error for backward promotion")
	}
	if !strings.Contains(err.Error(), "backward") {
		t.Errorf("expected backward in message, got %q", err.Error())
	}
}

func TestValidatePromotion_Order(t *testing.T) {
	// Emptiness is checked before environment membership: a blank version must
	// win over the bogus target environment.
	_, err := ValidatePromotion(PromotionRequest{
		App:     "web-api",
		Version: "   ",
		FromEnv: "dev",
		ToEnv:   "nowhere",
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "version cannot be empty") {
		t.Errorf("expected version emptiness to fail first, got %q", err.Error())
	}
}

func TestValidatePromotion_Normalizes(t *testing.T) {
	req, err := ValidatePromotion(PromotionRequest{
		App:     " web-api ",
		Version: "1.2.3",
		FromEnv: " DEV ",
		ToEnv:   "Staging",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.App != "web-api" || req.FromEnv != "dev" || req.ToEnv != "staging" {
		t.Errorf("unexpected normalized request: %+v", req)
	}
}

func TestValidatePromotion_Idempotent(t *testing.T) {
	in := PromotionRequest{App: "web-api", Version: "1.2.3", FromEnv: " UAT ", ToEnv: "prod"}
	first, err := ValidatePromotion(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := ValidatePromotion(first)
	if err != nil {
		t.Fatalf("unexpected error on revalidation: %v", err)
	}
	if first != second {
		t.Errorf("revalidation changed the request: %+v vs %+v", first, second)
	}
}

func TestIsProduction(t *testing.T) {
	if !IsProduction(EnvProd) {
		t.Error("prod must be the highest-risk environment")
	}
	if IsProduction(EnvUAT) {
		t.Error("uat must not be flagged as production")
	}
}
