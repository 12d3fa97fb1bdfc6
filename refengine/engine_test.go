package refengine

import (
	"testing"

	"tlschannel/engine"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type EngineTestSuite struct {
	suite.Suite
}

func TestEngineTestSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}

// drive runs the four-message handshake to completion between a freshly
// constructed client and server engine, exercising Wrap/Unwrap exactly the
// way tlschannel.Channel's handshake loop would.
func (s *EngineTestSuite) drive(client, server *Engine) {
	s.Require().NoError(client.BeginHandshake())

	buf := make([]byte, 4096)
	for client.HandshakeStatus() != engine.NotHandshaking || server.HandshakeStatus() != engine.NotHandshaking {
		if client.HandshakeStatus() == engine.NeedWrap {
			result, err := client.Wrap(nil, buf)
			s.Require().NoError(err)
			_, err = server.Unwrap(buf[:result.BytesProduced], nil)
			s.Require().NoError(err)
			continue
		}
		if server.HandshakeStatus() == engine.NeedWrap {
			result, err := server.Wrap(nil, buf)
			s.Require().NoError(err)
			_, err = client.Unwrap(buf[:result.BytesProduced], nil)
			s.Require().NoError(err)
			continue
		}
		break
	}
}

func (s *EngineTestSuite) TestHandshakeEstablishesSymmetricKeys() {
	client, err := New(RoleClient)
	s.Require().NoError(err)
	server, err := New(RoleServer)
	s.Require().NoError(err)

	s.drive(client, server)

	s.True(client.established)
	s.True(server.established)
	s.Equal(client.writeIV, server.readIV)
	s.Equal(client.readIV, server.writeIV)
}

func (s *EngineTestSuite) TestApplicationDataRoundTrip() {
	client, err := New(RoleClient)
	s.Require().NoError(err)
	server, err := New(RoleServer)
	s.Require().NoError(err)
	s.drive(client, server)

	plaintext := []byte("hello over a toy handshake")
	wireBuf := make([]byte, 4096)

	result, err := client.Wrap(plaintext, wireBuf)
	s.Require().NoError(err)
	s.Equal(len(plaintext), result.BytesConsumed)

	plainBuf := make([]byte, 4096)
	unwrapResult, err := server.Unwrap(wireBuf[:result.BytesProduced], plainBuf)
	s.Require().NoError(err)
	s.Equal(plaintext, plainBuf[:unwrapResult.BytesProduced])
}

func (s *EngineTestSuite) TestFinishedMismatchFailsHandshake() {
	client, err := New(RoleClient)
	s.Require().NoError(err)
	server, err := New(RoleServer)
	s.Require().NoError(err)
	s.Require().NoError(client.BeginHandshake())

	buf := make([]byte, 4096)

	// ClientHello -> server
	result, err := client.Wrap(nil, buf)
	s.Require().NoError(err)
	_, err = server.Unwrap(buf[:result.BytesProduced], nil)
	s.Require().NoError(err)

	// ServerHello -> client
	result, err = server.Wrap(nil, buf)
	s.Require().NoError(err)
	_, err = client.Unwrap(buf[:result.BytesProduced], nil)
	s.Require().NoError(err)

	// client Finished -> server, tampered in transit
	result, err = client.Wrap(nil, buf)
	s.Require().NoError(err)
	tampered := append([]byte{}, buf[:result.BytesProduced]...)
	tampered[len(tampered)-1] ^= 0xFF

	_, err = server.Unwrap(tampered, nil)
	require.ErrorIs(s.T(), err, errFinishedMismatch)
}

func (s *EngineTestSuite) TestCloseNotify() {
	client, err := New(RoleClient)
	s.Require().NoError(err)
	server, err := New(RoleServer)
	s.Require().NoError(err)
	s.drive(client, server)

	client.CloseOutbound()
	s.Equal(engine.NeedWrap, client.HandshakeStatus())

	buf := make([]byte, 64)
	result, err := client.Wrap(nil, buf)
	s.Require().NoError(err)
	s.Equal(engine.Closed, result.Status)

	unwrapResult, err := server.Unwrap(buf[:result.BytesProduced], nil)
	s.Require().NoError(err)
	s.Equal(engine.Closed, unwrapResult.Status)
	s.True(server.closed)
}
