/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package session

import (
	"bytes"
	"context"
	"encoding/json"

	jsoniter "github.com/json-iterator/go"

	"github.com/google/uuid"
	"github.com/vultureproject/darwin-go/classifier"
	"github.com/vultureproject/darwin-go/ferr"
	"github.com/vultureproject/darwin-go/wire"
)

// parseBody enforces spec §4.F/§8: the body must be a JSON array, and the
// zero-entry/zero-size frame is a valid control frame, not a parse error
// (resolved against the ambiguous §4.F prose in favour of the concrete §8
// boundary test and end-to-end scenario 3 — see DESIGN.md).
func parseBody(body []byte) ([]json.RawMessage, error) {
	if len(body) == 0 {
		return nil, nil
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil, ferr.NewRequestParse(err)
	}
	return entries, nil
}

// core is the transport-agnostic middle of the state machine, embedded by
// both the stream Session and the one-shot UDP handler.
type core struct {
	Deps
}

// execute submits one classification Task to the pool and blocks for its
// result: the next frame is never read before this one's dispatch decision
// is issued (spec §5 ordering invariant), so blocking the session's own
// goroutine here costs nothing but that session's own throughput.
func (c *core) execute(header *wire.Header, entries []json.RawMessage, rawBody []byte) classifier.Result {
	n := len(entries)
	if n == 0 {
		n = wire.DefaultCertitudeListSize
	}

	in := classifier.TaskInput{
		FilterCode: header.FilterCode,
		EventID:    header.EventID,
		Entries:    entries,
		RawBody:    rawBody,
		Threshold:  c.Threshold,
		Cache:      c.Cache,
		Hash:       c.Hash,
	}
	task := c.Factory.NewTask(in)

	type outcome struct {
		res classifier.Result
		err error
	}
	done := make(chan outcome, 1)
	submitErr := c.Pool.Submit(func(ctx context.Context) {
		res, err := task.Run(ctx)
		done <- outcome{res, err}
	})
	if submitErr != nil {
		c.Log.Errorf("%v", submitErr)
		return errorResult(n)
	}

	out := <-done
	if out.err != nil {
		c.Log.Errorf("%v", &ferr.ClassifierInternal{Cause: out.err})
	}
	res := out.res
	if len(res.Certitudes) != n {
		// an empty control frame takes the classifier's default certitude;
		// any other missing slot is a per-entry processing error.
		fill := uint16(wire.ErrorReturn)
		if len(entries) == 0 {
			fill = c.Factory.DefaultCertitude()
		}
		padded := make([]uint16, n)
		copy(padded, res.Certitudes)
		for i := len(res.Certitudes); i < n; i++ {
			padded[i] = fill
		}
		res.Certitudes = padded
	}
	return res
}

func errorResult(n int) classifier.Result {
	certitudes := make([]uint16, n)
	for i := range certitudes {
		certitudes[i] = wire.ErrorReturn
	}
	return classifier.Result{Certitudes: certitudes}
}

// errorReplyBody builds the one-entry JSON body spec §7's RequestParse row
// requires when response_mode wants a client reply: {"error":…,"error_code":400}.
func errorReplyBody(cause error) []byte {
	body, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(struct {
		Error     string `json:"error"`
		ErrorCode int    `json:"error_code"`
	}{Error: cause.Error(), ErrorCode: 400})
	if err != nil {
		// the struct above is always marshalable; this is unreachable in
		// practice, but a reply body is still owed to the caller.
		return []byte(`{"error":"request parse failed","error_code":400}`)
	}
	return body
}

// accountAndAlert updates match_count for every non-sentinel certitude that
// crosses threshold and forwards the classifier's own Alert records to the
// alert manager. The runtime decides match_count purely from certitude vs
// threshold (spec §4.I); it never synthesises alert records on its own,
// since rendering an "entry" string is payload-semantics the runtime does
// not interpret (spec §1 Non-goals) — that is left entirely to the Task.
func (c *core) accountAndAlert(evtID uuid.UUID, res classifier.Result) {
	for _, cert := range res.Certitudes {
		if cert != wire.ErrorReturn && cert >= c.Threshold {
			c.Counters.EntryMatched()
		}
	}
	if c.AlertMgr == nil {
		return
	}
	for _, a := range res.Alerts {
		c.AlertMgr.Alert(a.Entry, a.Score, evtID.String(), a.Details, a.Tags)
	}
}

// transformBody applies the OUTPUT transform of spec §4.F to the body
// forwarded to the next filter: raw passes the original body through
// untouched, parsed substitutes the classifier's own re-serialisation, log
// forwards the session's log buffer (one newline-terminated JSON alert
// record per line, spec §4.F/§3.2), and none forwards an empty body.
func (c *core) transformBody(header *wire.Header, rawBody []byte, res classifier.Result) []byte {
	switch c.OutputType {
	case OutputRaw:
		return rawBody
	case OutputParsed:
		return []byte(res.ResponseBody)
	case OutputLog:
		return c.renderLogBuffer(header.EventID.String(), res.Alerts)
	default: // OutputNone
		return nil
	}
}

// renderLogBuffer renders this frame's alert records through the same
// structured format the alert manager writes to its own sinks, so the
// "log" output type forwards exactly what was (or would have been) alerted
// on, per entry, rather than a runtime-invented summary.
func (c *core) renderLogBuffer(evtID string, alerts []classifier.Alert) []byte {
	if c.AlertMgr == nil || len(alerts) == 0 {
		return nil
	}
	var buf []byte
	for _, a := range alerts {
		line, err := c.AlertMgr.RenderLogLine(a.Entry, a.Score, evtID, a.Details, a.Tags)
		if err != nil {
			c.Log.Errorf("session: render log line: %v", err)
			continue
		}
		buf = append(buf, line...)
	}
	return buf
}

// forward builds the downstream frame and hands it to the connector. It
// never blocks and never fails synchronously (spec §4.D send contract); a
// forward attempted with no next filter configured is logged once and
// otherwise dropped, matching the "single action fails, resume reading"
// dispatch rule for next_only (spec §4.F).
func (c *core) forward(header *wire.Header, res classifier.Result, rawBody []byte) {
	if c.Connector == nil {
		c.Log.Warningf("session: forward requested but no next filter is configured")
		return
	}
	body := c.transformBody(header, rawBody, res)
	out := &wire.Header{
		Type:           header.Type,
		ResponseMode:   header.ResponseMode,
		FilterCode:     c.Factory.FilterCode(),
		EventID:        header.EventID,
		CertitudeCount: uint32(len(res.Certitudes)),
	}
	frame := wire.EmitFrame(out, res.Certitudes, body)
	c.Connector.Send(frame)
}

// buildReply constructs the frame sent back to the client. body is nil for
// an ordinary reply (spec §4.F does not define any client-reply body
// transform for the success path; the OUTPUT option governs the forward
// path exclusively) or the spec §7 RequestParse error body on a parse
// failure.
func (c *core) buildReply(header *wire.Header, res classifier.Result, body []byte) []byte {
	out := &wire.Header{
		Type:           header.Type,
		ResponseMode:   header.ResponseMode,
		FilterCode:     c.Factory.FilterCode(),
		EventID:        header.EventID,
		CertitudeCount: uint32(len(res.Certitudes)),
	}
	return wire.EmitFrame(out, res.Certitudes, body)
}
