package regsync

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/panics"
)

// Copier copies one image between registries. Implementations retry
// transient failures internally; a returned error is final.
type Copier interface {
	Copy(ctx context.Context, src, dst string) error
}

// Flusher is implemented by output sinks that buffer.
type Flusher interface {
	Flush() error
}

// Stats summarizes one Run.
type Stats struct {
	Processed int
	Succeeded int
	Failed    int
}

// Processor turns a stream of InputRecords into a stream of
// OutputRecords, one copy at a time.
type Processor struct {
	copier Copier
	log    logrus.FieldLogger
}

// NewProcessor creates a processor backed by c.
func NewProcessor(c Copier, opts ...ProcessorOption) *Processor {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	return &Processor{copier: c, log: options.Logger}
}

// Process copies one image. Copy failures, including panics raised by
// the copier, are reported as Success=false and never returned.
func (p *Processor) Process(ctx context.Context, in InputRecord) OutputRecord {
	log := p.log.WithFields(logrus.Fields{
		"instance_id": in.ID(),
		"source":      in.SourceImageRef,
		"destination": in.DestImageRef,
	})

	log.WithField("state", StateCopying).Infof("Copying image for instance %s: %s -> %s",
		in.ID(), in.SourceImageRef, in.DestImageRef)

	if err := p.copy(ctx, in.SourceImageRef, in.DestImageRef); err != nil {
		log.WithError(err).WithField("state", StateFailed).Errorf("Failed to copy image for instance %s", in.ID())
		return in.Result(false)
	}

	log.WithField("state", StateSucceeded).Infof("Copied image for instance %s", in.ID())
	return in.Result(true)
}

func (p *Processor) copy(ctx context.Context, src, dst string) error {
	var (
		pc  panics.Catcher
		err error
	)
	pc.Try(func() { err = p.copier.Copy(ctx, src, dst) })
	if r := pc.Recovered(); r != nil {
		return fmt.Errorf("copier panicked: %w", r.AsError())
	}
	return err
}

// Run reads line-delimited InputRecords from r until EOF and writes one
// OutputRecord line per input to w, in input order. w is flushed after
// every record when it implements Flusher.
//
// A line that cannot be decoded stops the run with a *ProtocolError;
// records already written stay written. Write errors are returned as is.
func (p *Processor) Run(ctx context.Context, r io.Reader, w io.Writer) (Stats, error) {
	var stats Stats

	br := bufio.NewReader(r)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	for lineNo := 1; ; lineNo++ {
		line, readErr := br.ReadBytes('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return stats, fmt.Errorf("read input: %w", readErr)
		}

		// Whitespace-only lines carry no record.
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			in, err := DecodeRecord(trimmed)
			if err != nil {
				return stats, &ProtocolError{Line: lineNo, Err: err}
			}
			p.log.WithFields(logrus.Fields{
				"instance_id": in.ID(),
				"line":        lineNo,
				"state":       StatePending,
			}).Debug("Record decoded")

			out := p.Process(ctx, in)
			if err := p.emit(enc, w, out); err != nil {
				return stats, err
			}
			p.log.WithFields(logrus.Fields{
				"instance_id": in.ID(),
				"state":       StateEmitted,
			}).Debug("Record emitted")

			stats.Processed++
			if out.Success {
				stats.Succeeded++
			} else {
				stats.Failed++
			}
		}

		if readErr != nil {
			return stats, nil
		}
	}
}

func (p *Processor) emit(enc *json.Encoder, w io.Writer, out OutputRecord) error {
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("write output record %s: %w", out.ID(), err)
	}
	if f, ok := w.(Flusher); ok {
		if err := f.Flush(); err != nil {
			return fmt.Errorf("flush output record %s: %w", out.ID(), err)
		}
	}
	return nil
}
