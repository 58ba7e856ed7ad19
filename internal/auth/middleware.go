package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/fivetwenty-io/apirequests/internal/constants"
	"github.com/fivetwenty-io/apirequests/pkg/apireq"
)

// SignatureMiddleware signs every request with the gateway token for prefix.
//
// When the gateway rejects the token with an invalid_token error the token is
// refreshed and the original request is re-issued once. The second response
// is returned whatever its outcome.
func SignatureMiddleware(provider TokenProvider, prefix string, logger apireq.Logger) apireq.Middleware {
	if logger == nil {
		logger = apireq.NopLogger()
	}

	return func(next apireq.Handler) apireq.Handler {
		return func(ctx context.Context, req *apireq.Request) (*apireq.Response, error) {
			token, err := provider.GetToken(ctx, prefix)
			if err != nil {
				return nil, fmt.Errorf("failed to get gateway token: %w", err)
			}

			resp, err := next(ctx, sign(req, token))
			if err != nil || !isInvalidToken(resp) {
				return resp, err
			}

			logger.Warn("Gateway token rejected, refreshing", map[string]interface{}{
				"prefix": prefix,
				"status": resp.StatusCode,
			})

			token, err = provider.RefreshToken(ctx, prefix)
			if err != nil {
				return nil, fmt.Errorf("failed to refresh gateway token: %w", err)
			}

			return next(ctx, sign(req, token))
		}
	}
}

// sign returns a copy of req carrying the signature params. Params are
// applied in lexicographic key order.
func sign(req *apireq.Request, token string) *apireq.Request {
	signed := req.Clone()
	params := map[string]string{constants.AccessTokenParam: token}

	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		signed.SetQuery(key, params[key])
	}

	return signed
}

func isInvalidToken(resp *apireq.Response) bool {
	if resp == nil || !resp.IsClientError() || len(resp.Body) == 0 {
		return false
	}

	var body struct {
		Error string `json:"error"`
	}

	err := json.Unmarshal(resp.Body, &body)
	if err != nil {
		return false
	}

	return body.Error == constants.InvalidTokenError
}
