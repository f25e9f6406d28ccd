package httpserver

import "github.com/iruldev/xyprissgo/internal/reqres"

// WriteJSON serializes v via SerializeJSON and writes it with the given
// status, setting Content-Type to application/json. Handlers use this
// instead of calling resp.Write directly so that circular response values
// never surface as a 500.
func WriteJSON(resp *reqres.Response, status int, v any) error {
	body, err := SerializeJSON(v)
	if err != nil {
		return err
	}
	_ = resp.SetHeader("Content-Type", "application/json; charset=utf-8")
	if err := resp.WriteStatus(status); err != nil {
		return err
	}
	_, err = resp.Write(body)
	return err
}
