package validate

// PromotionRequest is the validated input for a release promotion.
type PromotionRequest struct {
	App     string `json:"app"`
	Version string `json:"version"`
	FromEnv string `json:"from_env"`
	ToEnv   string `json:"to_env"`
}

// ValidatePromotion runs the full pipeline over a promotion request in strict
// order: non-empty checks, environment normalization, then path legality.
// On success the returned request carries trimmed and normalized values.
func ValidatePromotion(req PromotionRequest) (PromotionRequest, error) {
	var out PromotionRequest
	var err error

	if out.App, err = TrimNonEmpty("app", req.App); err != nil {
		return out, err
	}
	if out.Version, err = TrimNonEmpty("version", req.Version); err != nil {
		return out, err
	}
	if out.FromEnv, err = TrimNonEmpty("from_env", req.FromEnv); err != nil {
		return out, err
	}
	if out.ToEnv, err = TrimNonEmpty("to_env", req.ToEnv); err != nil {
		return out, err
	}

	if out.FromEnv, err = requireEnvironment("from_env", out.FromEnv); err != nil {
		return out, err
	}
	if out.ToEnv, err = requireEnvironment("to_env", out.ToEnv); err != nil {
		return out, err
	}

	if err = ValidatePromotionPath(out.FromEnv, out.ToEnv); err != nil {
		return out, err
	}
	return out, nil
}

// requireEnvironment is NormalizeEnvironment without the empty pass-through:
// promotion endpoints are mandatory.
func requireEnvironment(param, value string) (string, error) {
	norm, err := NormalizeEnvironment(param, value)
	if err != nil {
		return "", err
	}
	if norm == "" {
		return "", &Error{
			Param:   param,
			Value:   value,
			Message: param + " cannot be empty",
		}
	}
	return norm, nil
}
