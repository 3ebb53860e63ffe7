// Package output sinks the receiver's sample stream.
package output

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/norasector/turbine-common/types"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/norasector/gnmax/pkg/util"
)

const (
	segmentBufferLength  = 8
	defaultFlushInterval = 250 * time.Millisecond
)

// SampleWriter writes complex segments to dest as interleaved little-endian float32 I/Q,
// the layout GNU Radio reads as gr_complex.
type SampleWriter struct {
	dest          io.Writer
	recvChan      chan *types.SegmentComplex64
	flushSegments int
	flushInterval time.Duration
	metrics       api.WriteAPI
}

type Option func(s *SampleWriter)

// WithFlushSegments sets how many segments are batched per write to dest.
func WithFlushSegments(n int) Option {
	return func(s *SampleWriter) {
		if n > 0 {
			s.flushSegments = n
		}
	}
}

// WithFlushInterval bounds how long a partial batch waits before it is written.
func WithFlushInterval(d time.Duration) Option {
	return func(s *SampleWriter) {
		s.flushInterval = d
	}
}

func WithMetrics(metrics api.WriteAPI) Option {
	return func(s *SampleWriter) {
		s.metrics = metrics
	}
}

func NewSampleWriter(dest io.Writer, opts ...Option) *SampleWriter {
	s := &SampleWriter{
		dest:          dest,
		recvChan:      make(chan *types.SegmentComplex64, segmentBufferLength),
		flushSegments: segmentBufferLength,
		flushInterval: defaultFlushInterval,
		metrics:       &util.MockWriteAPI{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SampleWriter) Receive() chan<- *types.SegmentComplex64 {
	return s.recvChan
}

// Start writes segments until ctx ends or dest fails. On cancellation the segments already
// queued and the partial batch are written out before Start returns.
func (s *SampleWriter) Start(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	outChan := make(chan []byte)
	writerDone := make(chan struct{})

	eg.Go(func() error {
		defer close(outChan)

		var b bytes.Buffer
		bufNum := 0
		lastSegment := 0

		// flush reports false once the writer has stopped on an error of its own.
		flush := func() bool {
			if bufNum == 0 {
				return true
			}
			out := make([]byte, b.Len())
			copy(out, b.Bytes())
			b.Reset()
			bufNum = 0

			select {
			case <-writerDone:
				return false
			case outChan <- out:
			}
			return true
		}

		encode := func(seg *types.SegmentComplex64) error {
			if lastSegment != 0 && seg.SegmentNumber != lastSegment+1 {
				log.Warn().
					Int("expected", lastSegment+1).
					Int("got", seg.SegmentNumber).
					Msg("sample segments dropped")
			}
			lastSegment = seg.SegmentNumber

			if err := binary.Write(&b, binary.LittleEndian, seg.Data); err != nil {
				return err
			}
			bufNum++
			return nil
		}

		for {
			select {
			case <-ctx.Done():
			drain:
				for {
					select {
					case seg := <-s.recvChan:
						if err := encode(seg); err != nil {
							return err
						}
					default:
						break drain
					}
				}
				flush()
				return ctx.Err()

			case <-time.After(s.flushInterval):
				if !flush() {
					return nil
				}

			case seg := <-s.recvChan:
				if err := encode(seg); err != nil {
					return err
				}
				if bufNum == s.flushSegments && !flush() {
					return nil
				}
			}
		}
	})

	eg.Go(func() error {
		defer close(writerDone)
		for out := range outChan {
			var n int
			var err error
			duration := util.TimeOperationMicroseconds(func() {
				n, err = s.dest.Write(out)
			})
			if err != nil {
				return err
			}
			s.metrics.WritePoint(influxdb2.NewPoint("gnmax.output.write",
				nil,
				map[string]interface{}{
					"bytes":       n,
					"duration_us": duration,
				}, time.Now()))
		}
		return nil
	})

	return eg.Wait()
}
