package pipeline

import (
	"net/http"
	"strconv"

	"adminguard/pkg/platform/httputil"
)

// HTTP adapts a chained handler to net/http. Results are written as JSON and errors in
// the uniform envelope. Rate-limited routes always carry the X-RateLimit headers.
func HTTP(h Handler, stages ...Stage) http.Handler {
	chained := Chain(h, stages...)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		req := &Request{HTTP: r}
		resp, err := chained(ctx, req)

		if rl := req.RateLimit; rl != nil {
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(rl.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(rl.ResetAt.Unix(), 10))
		}
		if err != nil {
			httputil.WriteError(ctx, w, err)
			return
		}
		writeResponse(w, resp)
	})
}

func writeResponse(w http.ResponseWriter, resp *Response) {
	if resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	if resp.Raw != nil {
		contentType := resp.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		_, _ = w.Write(resp.Raw)
		return
	}
	httputil.WriteJSON(w, status, resp.Body)
}
