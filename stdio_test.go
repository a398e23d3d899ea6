package mcpwire_test

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/relaywire/mcpwire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStdIORoundTrip(t *testing.T) {
	srvReader, srvWriter := io.Pipe()
	cliReader, cliWriter := io.Pipe()
	defer srvWriter.Close()
	defer cliWriter.Close()

	cliIO := mcpwire.NewStdIO(cliReader, srvWriter)
	srvIO := mcpwire.NewStdIO(srvReader, cliWriter)

	cliSess, err := cliIO.StartSession(context.Background())
	require.NoError(t, err)

	sessions := make(chan mcpwire.Session, 1)
	go func() {
		for sess := range srvIO.Sessions() {
			sessions <- sess
		}
	}()

	var srvSess mcpwire.Session
	select {
	case srvSess = <-sessions:
	case <-time.After(time.Second):
		t.Fatal("no server session")
	}

	cliMsgs := make(chan mcpwire.JSONRPCMessage, 1)
	srvMsgs := make(chan mcpwire.JSONRPCMessage, 1)
	go func() {
		for msg := range cliSess.Messages() {
			cliMsgs <- msg
		}
	}()
	go func() {
		for msg := range srvSess.Messages() {
			srvMsgs <- msg
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	req := mcpwire.JSONRPCMessage{
		JSONRPC: mcpwire.JSONRPCVersion,
		ID:      "1",
		Method:  mcpwire.MethodPing,
	}
	require.NoError(t, cliSess.Send(ctx, req))

	select {
	case got := <-srvMsgs:
		assert.Equal(t, mcpwire.MustString("1"), got.ID)
		assert.Equal(t, mcpwire.MethodPing, got.Method)
	case <-time.After(time.Second):
		t.Fatal("server did not receive request")
	}

	resp := mcpwire.JSONRPCMessage{
		JSONRPC: mcpwire.JSONRPCVersion,
		ID:      "1",
		Result:  json.RawMessage(`{}`),
	}
	require.NoError(t, srvSess.Send(ctx, resp))

	select {
	case got := <-cliMsgs:
		assert.Equal(t, mcpwire.MustString("1"), got.ID)
		assert.True(t, got.IsResponse())
	case <-time.After(time.Second):
		t.Fatal("client did not receive response")
	}

	cliSess.Stop()
	srvSess.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
	defer shutdownCancel()
	require.NoError(t, srvIO.Shutdown(shutdownCtx))
}

func TestStdIOSendAfterStop(t *testing.T) {
	srvReader, srvWriter := io.Pipe()
	defer srvWriter.Close()

	s := mcpwire.NewStdIO(srvReader, io.Discard)

	sess, err := s.StartSession(context.Background())
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range sess.Messages() {
		}
	}()

	sess.Stop()
	<-done

	err = sess.Send(context.Background(), mcpwire.JSONRPCMessage{
		JSONRPC: mcpwire.JSONRPCVersion,
		ID:      "1",
		Method:  mcpwire.MethodPing,
	})
	var te *mcpwire.TransportError
	assert.ErrorAs(t, err, &te)
}

func TestStdIOSkipsMalformedFrames(t *testing.T) {
	reader, writer := io.Pipe()
	defer writer.Close()

	s := mcpwire.NewStdIO(reader, io.Discard)
	sess, err := s.StartSession(context.Background())
	require.NoError(t, err)

	msgs := make(chan mcpwire.JSONRPCMessage, 1)
	go func() {
		for msg := range sess.Messages() {
			msgs <- msg
		}
	}()

	go func() {
		_, _ = writer.Write([]byte("not json\n"))
		_, _ = writer.Write([]byte("\n"))
		_, _ = writer.Write([]byte(`{"jsonrpc":"2.0","id":"7","method":"ping"}` + "\n"))
	}()

	select {
	case got := <-msgs:
		assert.Equal(t, mcpwire.MustString("7"), got.ID)
	case <-time.After(time.Second):
		t.Fatal("valid frame after malformed ones was not delivered")
	}

	sess.Stop()
}

func TestStdIOStableSessionID(t *testing.T) {
	reader, writer := io.Pipe()
	defer writer.Close()
	defer reader.Close()

	s := mcpwire.NewStdIO(reader, io.Discard)
	sess, err := s.StartSession(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, sess.ID())
	assert.Equal(t, sess.ID(), sess.ID())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range sess.Messages() {
		}
	}()
	sess.Stop()
	<-done
}
