package mcpwire

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// StdIO is a transport carrying newline-delimited JSON-RPC messages over an
// io.Reader/io.Writer pair, typically stdin/stdout of a subprocess. It
// provides a single persistent session and can act as either side of the
// connection: it implements both ServerTransport and ClientTransport.
//
// Instances must be created with NewStdIO. The session writes through an
// internal queue so concurrent Send calls never interleave frames.
type StdIO struct {
	sess   stdIOSession
	closed chan struct{}
}

type stdIOSession struct {
	id     string
	reader io.Reader
	writer io.Writer
	logger *slog.Logger

	writes chan stdIOWrite

	done        chan struct{}
	readClosed  chan struct{}
	writeClosed chan struct{}
}

type stdIOWrite struct {
	frame []byte
	errs  chan error
}

// NewStdIO creates a StdIO transport over the given reader and writer.
func NewStdIO(reader io.Reader, writer io.Writer) StdIO {
	return StdIO{
		sess: stdIOSession{
			id:          uuid.New().String(),
			reader:      reader,
			writer:      writer,
			logger:      slog.Default().With(slog.String("component", "stdio")),
			writes:      make(chan stdIOWrite),
			done:        make(chan struct{}),
			readClosed:  make(chan struct{}),
			writeClosed: make(chan struct{}),
		},
		closed: make(chan struct{}),
	}
}

// Sessions implements ServerTransport. The iterator yields the single
// persistent session and ends when that session stops.
func (s StdIO) Sessions() iter.Seq[Session] {
	return func(yield func(Session) bool) {
		defer close(s.closed)

		go s.sess.writeLoop()

		yield(s.sess)
		<-s.sess.done
	}
}

// Shutdown implements ServerTransport. It waits for the Sessions iteration
// to end.
func (s StdIO) Shutdown(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.closed:
	}
	return nil
}

// StartSession implements ClientTransport. The session is usable
// immediately.
func (s StdIO) StartSession(_ context.Context) (Session, error) {
	go s.sess.writeLoop()
	return s.sess, nil
}

func (s stdIOSession) ID() string {
	return s.id
}

func (s stdIOSession) Send(ctx context.Context, msg JSONRPCMessage) error {
	frame, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	// Newline terminates the frame.
	frame = append(frame, '\n')

	w := stdIOWrite{
		frame: frame,
		errs:  make(chan error, 1),
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return &TransportError{Err: errSessionClosed}
	case s.writes <- w:
	}

	select {
	case err := <-w.errs:
		if err != nil {
			return &TransportError{Err: err}
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return &TransportError{Err: errSessionClosed}
	}
}

func (s stdIOSession) Messages() iter.Seq[JSONRPCMessage] {
	return func(yield func(JSONRPCMessage) bool) {
		defer close(s.readClosed)

		// bufio.Reader instead of bufio.Scanner: frames can exceed the
		// scanner's max token size.
		reader := bufio.NewReader(s.reader)
		for {
			type readResult struct {
				line string
				err  error
			}

			lines := make(chan readResult, 1)

			// Reads happen on their own goroutine so a stalled reader
			// cannot keep the session from observing done.
			go func() {
				line, err := reader.ReadString('\n')
				if err != nil {
					lines <- readResult{err: err}
					return
				}
				lines <- readResult{line: strings.TrimSuffix(line, "\n")}
			}()

			var res readResult
			select {
			case <-s.done:
				return
			case res = <-lines:
			}

			if res.err != nil {
				if !errors.Is(res.err, io.EOF) {
					s.logger.Error("failed to read frame", slog.String("err", res.err.Error()))
				}
				return
			}
			if res.line == "" {
				continue
			}

			var msg JSONRPCMessage
			if err := json.Unmarshal([]byte(res.line), &msg); err != nil {
				s.logger.Error("failed to unmarshal frame", slog.String("err", err.Error()))
				continue
			}

			if !yield(msg) {
				return
			}
		}
	}
}

func (s stdIOSession) Stop() {
	close(s.done)
	<-s.readClosed
	<-s.writeClosed
}

func (s stdIOSession) writeLoop() {
	defer close(s.writeClosed)

	for {
		var w stdIOWrite
		select {
		case <-s.done:
			return
		case w = <-s.writes:
		}

		_, err := s.writer.Write(w.frame)
		w.errs <- err
	}
}
