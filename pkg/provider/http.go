package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	errs "imgscraper/pkg/errors"
	"imgscraper/pkg/httpclient"
	"imgscraper/pkg/logger"
)

// maxBody caps how much of a search response is read
const maxBody = 5 << 20

// fetchBody performs a search request. ok is false when the response should be
// treated as NotFound: any status other than 200 that is not transient.
func fetchBody(ctx context.Context, c *httpclient.Client, log logger.Logger, rawURL string, headers map[string]string) (body []byte, ok bool, err error) {
	resp, err := c.Get(ctx, rawURL, headers)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		statusErr := httpclient.StatusError(resp)
		if errs.IsRetryableStatusCode(resp.StatusCode) {
			return nil, false, statusErr
		}
		dropped(log, statusErr)
		return nil, false, nil
	}

	body, err = io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, false, errs.Wrap(errs.ErrorTypeNetwork, "failed to read search response", err)
	}
	return body, true, nil
}

// fetchJSON decodes a search response; an undecodable body is NotFound
func fetchJSON(ctx context.Context, c *httpclient.Client, log logger.Logger, rawURL string, headers map[string]string, target interface{}) (bool, error) {
	body, ok, err := fetchBody(ctx, c, log, rawURL, headers)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(body, target); err != nil {
		dropped(log, errs.Wrap(errs.ErrorTypeParsing, "undecodable search response", err))
		return false, nil
	}
	return true, nil
}

// dropped records a response that ends up as NotFound. A rejected key is
// worth a warning since every later search will fail the same way.
func dropped(log logger.Logger, err error) {
	if errs.IsType(err, errs.ErrorTypeAuth) {
		log.WithError(err).Warn("Provider rejected the credentials")
		return
	}
	log.WithError(err).DebugWithFields("search response dropped", map[string]interface{}{
		"error_type": string(errs.TypeOf(err)),
	})
}
