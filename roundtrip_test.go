package tlschannel_test

import (
	"crypto/sha256"
	"io"
	"math/rand"
	"sync"
	"testing"
	"time"

	"tlschannel"
	"tlschannel/refengine"
	"tlschannel/transport/pipe"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"
)

type RoundTripTestSuite struct {
	suite.Suite
	clock clock.Clock
}

func TestRoundTripTestSuite(t *testing.T) {
	suite.Run(t, new(RoundTripTestSuite))
}

func (s *RoundTripTestSuite) SetupTest() {
	s.clock = clock.New()
}

func (s *RoundTripTestSuite) TearDownTest() {
	goleak.VerifyNone(s.T())
}

// seededPayload reproduces deterministic data for a given seed and length,
// the same way across every scenario that needs "a lot of random bytes with
// a checksum to compare against".
func seededPayload(seed int64, n int) []byte {
	r := rand.New(rand.NewSource(seed))
	buf := make([]byte, n)
	_, _ = r.Read(buf)
	return buf
}

func (s *RoundTripTestSuite) TestHalfDuplexEcho() {
	const size = 1_000_000
	const seed = 143000953

	client, server, _ := newPair(s.T(), s.clock)
	defer client.Close()
	defer server.Close()

	payload := seededPayload(seed, size)
	want := sha256.Sum256(payload)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		s.Require().NoError(writeAll(client, payload))
	}()

	got := sha256.New()
	go func() {
		defer wg.Done()
		buf := make([]byte, 16*1024)
		remaining := size
		for remaining > 0 {
			n, err := server.Read(buf)
			s.Require().NoError(err)
			got.Write(buf[:n])
			remaining -= n
		}
	}()

	wg.Wait()
	s.Equal(want[:], got.Sum(nil))

	// Echo the same payload back: server writes, client reads.
	wg.Add(2)

	go func() {
		defer wg.Done()
		s.Require().NoError(writeAll(server, payload))
	}()

	gotBack := sha256.New()
	go func() {
		defer wg.Done()
		buf := make([]byte, 16*1024)
		remaining := size
		for remaining > 0 {
			n, err := client.Read(buf)
			s.Require().NoError(err)
			gotBack.Write(buf[:n])
			remaining -= n
		}
	}()

	wg.Wait()
	s.Equal(want[:], gotBack.Sum(nil))
}

func (s *RoundTripTestSuite) TestFullDuplex() {
	const size = 250_000
	clientPayload := seededPayload(1, size)
	serverPayload := seededPayload(2, size)

	client, server, _ := newPair(s.T(), s.clock)
	defer client.Close()
	defer server.Close()

	var wg sync.WaitGroup
	wg.Add(4)

	go func() { defer wg.Done(); s.Require().NoError(writeAll(client, clientPayload)) }()
	go func() { defer wg.Done(); s.Require().NoError(writeAll(server, serverPayload)) }()

	var clientGot, serverGot []byte
	go func() { defer wg.Done(); clientGot = readAll(s.T(), client, size) }()
	go func() { defer wg.Done(); serverGot = readAll(s.T(), server, size) }()

	wg.Wait()
	s.Equal(serverPayload, clientGot)
	s.Equal(clientPayload, serverGot)
}

func (s *RoundTripTestSuite) TestRenegotiationMidStream() {
	const chunk = 10_000
	const chunks = 5
	payload := seededPayload(42, chunk*chunks)

	client, server, _ := newPair(s.T(), s.clock)
	defer client.Close()
	defer server.Close()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < chunks; i++ {
			s.Require().NoError(writeAll(client, payload[i*chunk:(i+1)*chunk]))
			if i < chunks-1 {
				s.Require().NoError(client.Renegotiate())
			}
		}
	}()

	var got []byte
	go func() {
		defer wg.Done()
		got = readAll(s.T(), server, chunk*chunks)
	}()

	wg.Wait()
	s.Equal(payload, got)
}

func (s *RoundTripTestSuite) TestWouldBlockOnReadDeadline() {
	mock := clock.NewMock()

	clientEngine, err := refengine.New(refengine.RoleClient)
	s.Require().NoError(err)
	serverEngine, err := refengine.New(refengine.RoleServer)
	s.Require().NoError(err)

	c1, c2 := pipe.BufferedPipe("a", "b", mock, 64*1024)

	client, err := tlschannel.New(tlschannel.Config{
		Conn:             c1,
		Engine:           clientEngine,
		InboundEncrypted: make([]byte, tlschannel.MaxRecordSize),
	})
	s.Require().NoError(err)
	defer client.Close()

	server, err := tlschannel.New(tlschannel.Config{
		Conn:             c2,
		Engine:           serverEngine,
		InboundEncrypted: make([]byte, tlschannel.MaxRecordSize),
	})
	s.Require().NoError(err)
	defer server.Close()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); s.Require().NoError(client.DoHandshake()) }()
	go func() { defer wg.Done(); s.Require().NoError(server.DoPassiveHandshake()) }()
	wg.Wait()

	c2.SetReadDeadLine(mock.Now().Add(time.Millisecond))
	mock.Add(2 * time.Millisecond)

	buf := make([]byte, 10)
	_, err = server.Read(buf)
	s.ErrorIs(err, tlschannel.ErrWouldBlock)
}

func (s *RoundTripTestSuite) TestCleanClose() {
	client, server, _ := newPair(s.T(), s.clock)
	defer server.Close()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); s.Require().NoError(client.DoHandshake()) }()
	go func() { defer wg.Done(); s.Require().NoError(server.DoPassiveHandshake()) }()
	wg.Wait()

	s.Require().NoError(client.Close())

	buf := make([]byte, 10)
	_, err := server.Read(buf)
	s.ErrorIs(err, io.EOF)
}

// TestFragmentedTransportDelivery exercises unwrapLoop's buffer-underflow
// handling: the underlying pipe's own buffer is much smaller than one TLS
// record, so every record the channel reads arrives across several Read
// calls on the transport instead of one.
func (s *RoundTripTestSuite) TestFragmentedTransportDelivery() {
	const size = 100_000

	clientEngine, err := refengine.New(refengine.RoleClient)
	s.Require().NoError(err)
	serverEngine, err := refengine.New(refengine.RoleServer)
	s.Require().NoError(err)

	c1, c2 := pipe.BufferedPipe("a", "b", s.clock, 512)

	client, err := tlschannel.New(tlschannel.Config{
		Conn:             c1,
		Engine:           clientEngine,
		InboundEncrypted: make([]byte, tlschannel.MaxRecordSize),
	})
	s.Require().NoError(err)
	defer client.Close()

	server, err := tlschannel.New(tlschannel.Config{
		Conn:             c2,
		Engine:           serverEngine,
		InboundEncrypted: make([]byte, tlschannel.MaxRecordSize),
	})
	s.Require().NoError(err)
	defer server.Close()

	payload := seededPayload(7, size)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); s.Require().NoError(writeAll(client, payload)) }()

	var got []byte
	go func() { defer wg.Done(); got = readAll(s.T(), server, size) }()

	wg.Wait()
	s.Equal(payload, got)
}

// writeAll drives a Channel's Write in a loop until src is consumed. Write
// returns a short count only when the transport reports it would block after
// partial progress; on a blocking transport one call consumes all of src.
func writeAll(c *tlschannel.Channel, src []byte) error {
	for len(src) > 0 {
		n, err := c.Write(src)
		if err != nil {
			return err
		}
		src = src[n:]
	}
	return nil
}

func readAll(t *testing.T, c *tlschannel.Channel, n int) []byte {
	t.Helper()
	out := make([]byte, 0, n)
	buf := make([]byte, 16*1024)
	for len(out) < n {
		k, err := c.Read(buf)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		out = append(out, buf[:k]...)
	}
	return out
}
