package tlschannel_test

import (
	"io"
	"sync"
	"testing"

	"tlschannel"
	"tlschannel/engine"
	"tlschannel/refengine"
	"tlschannel/transport/pipe"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"
)

func newPair(t *testing.T, clk clock.Clock) (client, server *tlschannel.Channel, sessionCalls *int32) {
	t.Helper()

	c1, c2 := pipe.BufferedPipe("client", "server", clk, 64*1024)

	clientEngine, err := refengine.New(refengine.RoleClient)
	require.NoError(t, err)
	serverEngine, err := refengine.New(refengine.RoleServer)
	require.NoError(t, err)

	var calls int32
	sessionCalls = &calls

	client, err = tlschannel.New(tlschannel.Config{
		Conn:             c1,
		Engine:           clientEngine,
		InboundEncrypted: make([]byte, tlschannel.MaxRecordSize),
		SessionInitialized: func(engine.Session) {
			calls++
		},
	})
	require.NoError(t, err)

	server, err = tlschannel.New(tlschannel.Config{
		Conn:             c2,
		Engine:           serverEngine,
		InboundEncrypted: make([]byte, tlschannel.MaxRecordSize),
	})
	require.NoError(t, err)

	return client, server, sessionCalls
}

type ChannelTestSuite struct {
	suite.Suite
	clock clock.Clock
}

func TestChannelTestSuite(t *testing.T) {
	suite.Run(t, new(ChannelTestSuite))
}

func (s *ChannelTestSuite) SetupTest() {
	s.clock = clock.New()
}

func (s *ChannelTestSuite) TearDownTest() {
	goleak.VerifyNone(s.T())
}

func (s *ChannelTestSuite) TestTooSmallInboundBuffer() {
	e, err := refengine.New(refengine.RoleClient)
	s.Require().NoError(err)

	c1, _ := pipe.BufferedPipe("a", "b", s.clock, 1024)

	_, err = tlschannel.New(tlschannel.Config{
		Conn:             c1,
		Engine:           e,
		InboundEncrypted: make([]byte, tlschannel.MaxRecordSize-1),
	})
	s.Error(err)
}

func (s *ChannelTestSuite) TestZeroLengthReadWrite() {
	client, server, _ := newPair(s.T(), s.clock)
	defer client.Close()
	defer server.Close()

	n, err := client.Read(nil)
	s.NoError(err)
	s.Zero(n)

	n, err = client.Write(nil)
	s.NoError(err)
	s.Zero(n)
}

func (s *ChannelTestSuite) TestDoHandshakeIdempotent() {
	client, server, calls := newPair(s.T(), s.clock)
	defer client.Close()
	defer server.Close()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); s.Require().NoError(client.DoHandshake()) }()
	go func() { defer wg.Done(); s.Require().NoError(server.DoPassiveHandshake()) }()
	wg.Wait()

	s.Require().NoError(client.DoHandshake())
	s.Equal(int32(1), *calls)
}

func (s *ChannelTestSuite) TestReadAfterClose() {
	client, server, _ := newPair(s.T(), s.clock)
	defer server.Close()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); s.Require().NoError(client.DoHandshake()) }()
	go func() { defer wg.Done(); s.Require().NoError(server.DoPassiveHandshake()) }()
	wg.Wait()

	done := make(chan struct{})
	var n int
	var err error
	go func() {
		defer close(done)
		buf := make([]byte, 10)
		n, err = client.Read(buf)
	}()

	s.Require().NoError(client.Close())
	<-done

	s.ErrorIs(err, io.EOF)
	s.Zero(n)

	s.False(client.IsOpen())
}

func (s *ChannelTestSuite) TestWriteAfterClose() {
	client, server, _ := newPair(s.T(), s.clock)
	defer server.Close()

	s.Require().NoError(client.Close())

	_, err := client.Write([]byte("x"))
	s.ErrorIs(err, tlschannel.ErrClosed)
}
