package smoketest

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	httpcmn "github.com/aukilabs/hagall-common/http"
	"github.com/aukilabs/quadcast/geom"
	"github.com/aukilabs/quadcast/raycast"
	"github.com/aukilabs/quadcast/signing"
	"github.com/segmentio/encoding/json"
)

const (
	defaultTimeout = 5 * time.Second
	maxTimeout     = time.Minute
)

type Options struct {
	// The public endpoint of the server, reported in results.
	Endpoint string

	Caster raycast.Caster

	// Signs reports when set.
	Signer *signing.Signer

	// Forwards reports once written to the client. Optional.
	SendResult func(context.Context, Report) error
}

// Request is the optional body of a smoke test request.
type Request struct {
	TimeoutMilliSec int `json:"timeout_ms,omitempty"`
}

// ScenarioResult is the outcome of a single scenario.
type ScenarioResult struct {
	Name   string         `json:"name"`
	Passed bool           `json:"passed"`
	Result raycast.Result `json:"result"`
	Error  string         `json:"error,omitempty"`
}

// Report is the outcome of a smoke test. Signature signs the JSON encoding
// of the report with an empty signature.
type Report struct {
	Endpoint        string           `json:"endpoint"`
	Passed          bool             `json:"passed"`
	Scenarios       []ScenarioResult `json:"scenarios"`
	LatencyMilliSec float64          `json:"latency_ms"`
	Timestamp       time.Time        `json:"timestamp"`
	SignerAddress   string           `json:"signer_address,omitempty"`
	Signature       string           `json:"signature,omitempty"`
}

// SignedBytes returns the bytes covered by the report signature.
func (r Report) SignedBytes() ([]byte, error) {
	r.Signature = ""
	return json.Marshal(r)
}

// HandleSmokeTest runs the reference scenarios against the caster and
// writes the report.
func HandleSmokeTest(ctx context.Context, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			httpcmn.InternalServerError(w, errors.New("reading body failed").Wrap(err))
			return
		}

		var req Request
		if len(b) != 0 {
			if err := json.Unmarshal(b, &req); err != nil {
				httpcmn.BadRequest(w, httpcmn.ErrBadRequest)
				return
			}
		}

		timeout := defaultTimeout
		if req.TimeoutMilliSec > 0 {
			timeout = min(time.Duration(req.TimeoutMilliSec)*time.Millisecond, maxTimeout)
		}

		runCtx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		report, err := Run(runCtx, opts)
		if err != nil {
			httpcmn.InternalServerError(w, err)
			return
		}

		if !report.Passed {
			logs.WithTag("endpoint", opts.Endpoint).
				WithTag("report", report).
				Warn(errors.New("smoke test failed"))
		}

		res, err := json.Marshal(report)
		if err != nil {
			httpcmn.InternalServerError(w, errors.New("encoding report failed").Wrap(err))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(res)

		if opts.SendResult == nil {
			return
		}

		go func() {
			if err := opts.SendResult(ctx, report); err != nil {
				logs.WithTag("endpoint", opts.Endpoint).
					Warn(errors.New("sending smoke test result failed").Wrap(err))
			}
		}()
	}
}

// Run casts every reference scenario and returns the signed report.
func Run(ctx context.Context, opts Options) (Report, error) {
	start := time.Now()

	report := Report{
		Endpoint:  opts.Endpoint,
		Passed:    true,
		Timestamp: start.UTC(),
	}

	for _, s := range Scenarios() {
		res := runScenario(ctx, opts.Caster, s)
		report.Passed = report.Passed && res.Passed
		report.Scenarios = append(report.Scenarios, res)
	}

	report.LatencyMilliSec = float64(time.Since(start)) / float64(time.Millisecond)

	if opts.Signer == nil {
		return report, nil
	}

	report.SignerAddress = opts.Signer.Address()
	b, err := report.SignedBytes()
	if err != nil {
		return Report{}, errors.New("encoding report failed").Wrap(err)
	}

	if report.Signature, err = opts.Signer.Sign(b); err != nil {
		return Report{}, err
	}
	return report, nil
}

func runScenario(ctx context.Context, caster raycast.Caster, s Scenario) ScenarioResult {
	res := ScenarioResult{Name: s.Name}

	tree, err := s.Build()
	if err != nil {
		res.Error = err.Error()
		return res
	}

	res.Result, err = caster.Cast(ctx, tree, geom.NewRay(s.Origin, s.Direction))
	if err != nil {
		res.Error = err.Error()
		return res
	}

	res.Passed = s.Check(res.Result)
	return res
}

// NewResultSender returns a function posting reports as JSON to endpoint.
func NewResultSender(endpoint string, client *http.Client) func(context.Context, Report) error {
	if client == nil {
		client = http.DefaultClient
	}

	return func(ctx context.Context, report Report) error {
		b, err := json.Marshal(report)
		if err != nil {
			return errors.New("encoding report failed").Wrap(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
		if err != nil {
			return errors.New("creating request failed").
				WithTag("endpoint", endpoint).
				Wrap(err)
		}
		req.Header.Set("Content-Type", "application/json")

		res, err := client.Do(req)
		if err != nil {
			return errors.New("posting report failed").
				WithTag("endpoint", endpoint).
				Wrap(err)
		}
		defer res.Body.Close()

		if res.StatusCode >= http.StatusBadRequest {
			return errors.Newf("unexpected status code %d", res.StatusCode).
				WithTag("endpoint", endpoint)
		}
		return nil
	}
}
