package restyutil

import (
	"strconv"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

// AttachOutput writes every exchange the client performs to `output`.
// A nil output makes the function a no-op. Tracing stays the job of
// telemetry.InstrumentResty; this hook only captures raw traffic for
// offline protocol debugging.
func AttachOutput(client *resty.Client, output Output) {
	if output == nil {
		return
	}

	var idcounter uint64
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		id := strconv.FormatUint(atomic.AddUint64(&idcounter, 1), 10)
		output.Write(id, formatHttpMessage(res))
		return nil
	})
}
