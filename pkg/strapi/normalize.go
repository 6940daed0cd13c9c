package strapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Names used in error envelopes for failures that never reached the API or
// whose answer could not be read.
const (
	ErrorNameTransport = "TransportError"
	ErrorNameCanceled  = "RequestCanceled"
	ErrorNameCache     = "CacheError"
	ErrorNameDecode    = "DecodeError"
	ErrorNameUnknown   = "UnknownError"
)

// NormalizeSuccess turns a raw response body into a flat envelope. Entries
// of the form {"id": 1, "attributes": {...}} are flattened into
// {"id": 1, ...} and relation wrappers {"data": ...} are replaced by their
// content, at any depth. A body that is not JSON, or that carries an error
// document, yields an error envelope.
func NormalizeSuccess(raw []byte) Envelope {
	var document map[string]interface{}

	if err := json.Unmarshal(raw, &document); err != nil {
		var other interface{}
		if json.Unmarshal(raw, &other) == nil {
			return Envelope{Data: flattenValue(other)}
		}

		return NormalizeError(fmt.Errorf("%w: %w", ErrDecode, err))
	}

	if document == nil {
		return Envelope{}
	}

	if errDoc, ok := document["error"].(map[string]interface{}); ok {
		return errorEnvelopeFromDocument(errDoc)
	}

	data, ok := document["data"]
	if !ok {
		return Envelope{Data: flattenValue(document)}
	}

	envelope := Envelope{Data: flattenValue(data)}

	if rawMeta, ok := document["meta"]; ok && rawMeta != nil {
		meta, err := decodeMeta(rawMeta)
		if err != nil {
			return NormalizeError(fmt.Errorf("%w: meta: %w", ErrDecode, err))
		}

		envelope.Meta = meta
	}

	return envelope
}

// NormalizeError turns any failure into the uniform error envelope. It
// never fails.
func NormalizeError(err error) Envelope {
	if err == nil {
		return Envelope{Error: &ErrorBody{Name: ErrorNameUnknown, Message: "unknown error"}}
	}

	apiErr := &APIError{}
	if errors.As(err, &apiErr) {
		body := apiErr.Body
		if body.Status == 0 {
			body.Status = apiErr.StatusCode
		}

		if body.Name == "" {
			body.Name = errorName(apiErr.StatusCode)
		}

		return Envelope{Error: &body}
	}

	name := ErrorNameTransport

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		name = ErrorNameCanceled
	case errors.Is(err, ErrCacheFailure):
		name = ErrorNameCache
	case errors.Is(err, ErrDecode):
		name = ErrorNameDecode
	}

	return Envelope{Error: &ErrorBody{Name: name, Message: err.Error()}}
}

func errorEnvelopeFromDocument(document map[string]interface{}) Envelope {
	body := ErrorBody{Name: ErrorNameUnknown}

	encoded, err := json.Marshal(document)
	if err == nil {
		_ = json.Unmarshal(encoded, &body)
	}

	return Envelope{Error: &body}
}

func decodeMeta(raw interface{}) (*Meta, error) {
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to encode meta: %w", err)
	}

	var meta Meta

	if err := json.Unmarshal(encoded, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode meta: %w", err)
	}

	return &meta, nil
}

func flattenValue(value interface{}) interface{} {
	switch v := value.(type) {
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, element := range v {
			out[i] = flattenValue(element)
		}

		return out

	case map[string]interface{}:
		if attributes, ok := v["attributes"].(map[string]interface{}); ok {
			out := make(map[string]interface{}, len(attributes)+2)
			for key, element := range attributes {
				out[key] = flattenValue(element)
			}

			for _, key := range []string{"id", "documentId"} {
				if id, ok := v[key]; ok {
					out[key] = id
				}
			}

			return out
		}

		if isRelationWrapper(v) {
			return flattenValue(v["data"])
		}

		out := make(map[string]interface{}, len(v))
		for key, element := range v {
			out[key] = flattenValue(element)
		}

		return out

	default:
		return value
	}
}

// isRelationWrapper matches {"data": ...} with at most a "meta" sibling.
func isRelationWrapper(v map[string]interface{}) bool {
	if _, ok := v["data"]; !ok {
		return false
	}

	for key := range v {
		if key != "data" && key != "meta" {
			return false
		}
	}

	return true
}
