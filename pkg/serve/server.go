package serve

import (
	"bufio"
	"context"
	"errors"
	"io"

	"github.com/goccy/go-json"

	"github.com/praetorian-inc/streamscan/pkg/logger"
	"github.com/praetorian-inc/streamscan/pkg/scanner"
)

// Version is the NDJSON protocol version reported in the ready line.
const Version = "2.0.0"

// Server speaks the NDJSON protocol over a reader and writer pair, routing
// requests to a shared scanner core.
type Server struct {
	core    *scanner.Core
	encoder *json.Encoder
	decoder *json.Decoder
	log     logger.Logger
}

func NewServer(core *scanner.Core, in io.Reader, out io.Writer) *Server {
	return &Server{
		core:    core,
		encoder: json.NewEncoder(out),
		decoder: json.NewDecoder(bufio.NewReader(in)),
		log:     logger.Std(),
	}
}

// Run writes the ready line, then serves requests until the input ends, a
// close request arrives or ctx is cancelled. Requests are handled in arrival
// order; a decode failure is reported once and ends the session.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.sendReady()

	reqs := make(chan Request)
	readErr := make(chan error, 1)
	go s.readRequests(ctx, reqs, readErr)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req, ok := <-reqs:
			if !ok {
				if err := <-readErr; err != nil && !errors.Is(err, io.EOF) && ctx.Err() == nil {
					s.sendError("decode", err.Error())
				}
				return nil
			}
			if s.processRequest(req) {
				return nil
			}
		}
	}
}

// readRequests decodes requests onto reqs and closes it once decoding stops,
// leaving the terminating error in errc.
func (s *Server) readRequests(ctx context.Context, reqs chan<- Request, errc chan<- error) {
	defer close(reqs)
	for {
		var req Request
		if err := s.decoder.Decode(&req); err != nil {
			errc <- err
			return
		}
		select {
		case reqs <- req:
		case <-ctx.Done():
			errc <- ctx.Err()
			return
		}
	}
}

// processRequest dispatches req and reports whether the session is over.
func (s *Server) processRequest(req Request) bool {
	switch req.Type {
	case TypeScan:
		s.handleScan(req.Payload)
	case TypeScanBatch:
		s.handleScanBatch(req.Payload)
	case TypeOpen:
		s.handleOpen(req.Payload)
	case TypeSubmit:
		s.handleSubmit(req.Payload)
	case TypeAnalyze:
		s.handleStream(req, func(id string) (any, error) { return s.core.Analyze(id) })
	case TypeFinish:
		s.handleStream(req, func(id string) (any, error) { return s.core.Finish(id) })
	case TypeResults:
		s.handleStream(req, func(id string) (any, error) { return s.core.Results(id) })
	case TypeReset:
		s.handleStream(req, func(id string) (any, error) { return OpenData{StreamID: id}, s.core.Reset(id) })
	case TypeCloseStream:
		s.handleStream(req, func(id string) (any, error) { return s.core.CloseStream(id) })
	case TypeStats:
		s.handleStats(req.Payload)
	case TypeClose:
		return true
	default:
		s.sendError("unknown", "unknown request type: "+req.Type)
	}
	return false
}

func (s *Server) sendReady() {
	s.reply("ready", ReadyData{Version: Version}, nil)
}

// reply encodes v as the response data. A non-nil err marks the response as
// failed; v is still sent unless it encodes to null.
func (s *Server) reply(reqType string, v any, err error) {
	resp := Response{Success: err == nil, Type: reqType}
	if err != nil {
		resp.Error = err.Error()
		s.log.Debugf("%s failed: %v", reqType, err)
	}
	if v != nil {
		data, merr := json.Marshal(v)
		if merr != nil {
			s.sendError(reqType, merr.Error())
			return
		}
		if string(data) != "null" {
			resp.Data = data
		}
	}
	if werr := s.encoder.Encode(resp); werr != nil {
		s.log.Warnf("write %s response: %v", reqType, werr)
	}
}

func (s *Server) handleScan(payload json.RawMessage) {
	var p ScanPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.sendError(TypeScan, err.Error())
		return
	}

	result, err := s.core.Scan(p.Content, p.Source)
	if err != nil {
		s.sendError(TypeScan, err.Error())
		return
	}
	s.reply(TypeScan, result, nil)
}

func (s *Server) handleScanBatch(payload json.RawMessage) {
	var p ScanBatchPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.sendError(TypeScanBatch, err.Error())
		return
	}

	result, err := s.core.ScanBatch(p.Items)
	if err != nil {
		s.sendError(TypeScanBatch, err.Error())
		return
	}
	s.reply(TypeScanBatch, result, nil)
}

func (s *Server) handleOpen(payload json.RawMessage) {
	var p OpenPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &p); err != nil {
			s.sendError(TypeOpen, err.Error())
			return
		}
	}

	id, err := s.core.Open(p)
	if err != nil {
		s.sendError(TypeOpen, err.Error())
		return
	}
	s.reply(TypeOpen, OpenData{StreamID: id}, nil)
}

func (s *Server) handleSubmit(payload json.RawMessage) {
	var p SubmitPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.sendError(TypeSubmit, err.Error())
		return
	}

	result, err := s.core.Submit(p.StreamID, p.Data)
	s.reply(TypeSubmit, result, err)
}

func (s *Server) handleStream(req Request, op func(id string) (any, error)) {
	var p StreamPayload
	if err := json.Unmarshal(req.Payload, &p); err != nil {
		s.sendError(req.Type, err.Error())
		return
	}
	if p.StreamID == "" {
		s.sendError(req.Type, "stream_id is required")
		return
	}

	v, err := op(p.StreamID)
	s.reply(req.Type, v, err)
}

func (s *Server) handleStats(payload json.RawMessage) {
	var p StreamPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &p); err != nil {
			s.sendError(TypeStats, err.Error())
			return
		}
	}
	if p.StreamID == "" {
		s.reply(TypeStats, StatsData{Streams: s.core.Streams()}, nil)
		return
	}

	st, err := s.core.Stats(p.StreamID)
	if err != nil {
		s.sendError(TypeStats, err.Error())
		return
	}
	s.reply(TypeStats, st, nil)
}

func (s *Server) sendError(reqType, msg string) {
	if err := s.encoder.Encode(Response{
		Success: false,
		Type:    reqType,
		Error:   msg,
	}); err != nil {
		s.log.Warnf("write %s error: %v", reqType, err)
	}
}
