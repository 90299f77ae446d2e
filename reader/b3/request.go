package b3

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"ibovflow/models"
)

// BuildRequestTarget forms the request URL for one page of the index
// composition endpoint. The parameter set is serialized to compact JSON,
// base64 encoded and appended to the base path. Deterministic: the same
// parameters always produce a byte-identical URL.
func BuildRequestTarget(base string, params models.FetchParameters) string {
	// FetchParameters marshals with stable field order, so this cannot fail.
	encoded, _ := json.Marshal(params)
	return fmt.Sprintf("%s/%s", base, base64.StdEncoding.EncodeToString(encoded))
}

// DecodeRequestTarget recovers the parameter set embedded in a request URL
// built by BuildRequestTarget. Used by tests and request debugging.
func DecodeRequestTarget(target string) (models.FetchParameters, error) {
	var params models.FetchParameters

	idx := len(target) - 1
	for idx >= 0 && target[idx] != '/' {
		idx--
	}
	payload := target[idx+1:]

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return params, fmt.Errorf("decode request payload: %w", err)
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		return params, fmt.Errorf("unmarshal request payload: %w", err)
	}
	return params, nil
}
