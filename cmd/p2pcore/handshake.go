// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"time"

	sagecrypto "github.com/skybridge-core/p2pcore/crypto"
	"github.com/skybridge-core/p2pcore/crypto/provider/classicprov"
	"github.com/skybridge-core/p2pcore/core/handshake"
	_ "github.com/skybridge-core/p2pcore/internal/cryptoinit"
	"github.com/skybridge-core/p2pcore/internal/logger"
	"github.com/skybridge-core/p2pcore/internal/metrics"
	"github.com/skybridge-core/p2pcore/replay"
	"github.com/skybridge-core/p2pcore/session"
	"github.com/skybridge-core/p2pcore/suite"
	"github.com/spf13/cobra"
)

var handshakeCmd = &cobra.Command{
	Use:   "handshake",
	Short: "Run a local two-party handshake demo over an in-process pipe",
	Long: `handshake drives both sides of a single handshake attempt
in-process, using the same driver a real transport uses, and prints the
resulting handshake id and derived session keys. It exists to exercise
the handshake core end to end without needing a live peer.`,
	RunE: runHandshake,
}

func init() {
	rootCmd.AddCommand(handshakeCmd)
}

// pipeConn is an in-process frameConn backed by directional channels,
// so a single process can drive both handshake sides concurrently
// without a real socket.
type pipeConn struct {
	out chan<- []byte
	in  <-chan []byte
}

func newPipePair() (a, b *pipeConn) {
	ab := make(chan []byte, 8)
	ba := make(chan []byte, 8)
	return &pipeConn{out: ab, in: ba}, &pipeConn{out: ba, in: ab}
}

func (p *pipeConn) Send(data []byte) error {
	p.out <- append([]byte(nil), data...)
	return nil
}

func (p *pipeConn) Recv() ([]byte, error) {
	return <-p.in, nil
}

func demoIdentity() (handshake.Identity, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return handshake.Identity{}, err
	}
	return handshake.Identity{
		PublicKey:     pub,
		SigningHandle: sagecrypto.NewSoftwareSigningKeyHandle(sagecrypto.NewSecureBytesFrom(priv)),
	}, nil
}

func classicProviderFor(wireID suite.WireID) (sagecrypto.Provider, error) {
	return classicprov.New(uint16(wireID))
}

func noPeerKEM(suite.WireID) ([]byte, bool) { return nil, false }

func noOwnKEMPriv(suite.WireID) (*sagecrypto.SecureBytes, bool) { return nil, false }

func runHandshake(cmd *cobra.Command, args []string) error {
	initConn, respConn := newPipePair()
	policy := handshake.HandshakePolicy{MinimumTier: suite.TierClassic}

	initIdentity, err := demoIdentity()
	if err != nil {
		return fmt.Errorf("generating initiator identity: %w", err)
	}
	respIdentity, err := demoIdentity()
	if err != nil {
		return fmt.Errorf("generating responder identity: %w", err)
	}

	initiatorCfg := handshake.InitiatorConfig{
		ProtocolVersion: 1,
		OfferedSuites:   []suite.WireID{suite.X25519Ed25519},
		Policy:          policy,
		Capabilities:    []byte("p2pcore-cli-initiator"),
		Identity:        initIdentity,
		ProviderFor:     classicProviderFor,
		PeerKEM:         noPeerKEM,
		Rand:            rand.Reader,
	}
	responderCfg := handshake.ResponderConfig{
		ProtocolVersion: 1,
		LocalSuites:     map[suite.WireID]bool{suite.X25519Ed25519: true},
		Policy:          policy,
		Capabilities:    []byte("p2pcore-cli-responder"),
		Identity:        respIdentity,
		ProviderFor:     classicProviderFor,
		OwnKEMPriv:      noOwnKEMPriv,
		Replay:          replay.NewCache(),
		AEAD:            handshake.AEADAES256GCM,
		Rand:            rand.Reader,
	}

	type result struct {
		keys        *handshake.SessionKeys
		handshakeID [32]byte
		err         error
	}
	initCh := make(chan result, 1)
	respCh := make(chan result, 1)

	metrics.HandshakesInitiated.WithLabelValues("initiator").Inc()
	metrics.HandshakesInitiated.WithLabelValues("responder").Inc()
	start := time.Now()
	suiteName := fmt.Sprintf("0x%04x", uint16(suite.X25519Ed25519))
	if info, ok := suite.Lookup(suite.X25519Ed25519); ok {
		suiteName = info.Name
	}
	logger.Info("handshake starting", logger.String("suite", suiteName))

	go func() {
		keys, id, err := session.RunInitiatorHandshake(initConn, initiatorCfg)
		initCh <- result{keys, id, err}
	}()
	go func() {
		keys, id, err := session.RunResponderHandshake(respConn, responderCfg)
		respCh <- result{keys, id, err}
	}()

	initRes := <-initCh
	respRes := <-respCh
	metrics.HandshakeDuration.WithLabelValues("finalize").Observe(time.Since(start).Seconds())

	if initRes.err != nil {
		metrics.HandshakesFailed.WithLabelValues("initiator").Inc()
		metrics.HandshakesCompleted.WithLabelValues("failure").Inc()
		logger.ErrorMsg("initiator side failed", logger.Error(initRes.err))
		return fmt.Errorf("initiator side: %w", initRes.err)
	}
	if respRes.err != nil {
		metrics.HandshakesFailed.WithLabelValues("responder").Inc()
		metrics.HandshakesCompleted.WithLabelValues("failure").Inc()
		logger.ErrorMsg("responder side failed", logger.Error(respRes.err))
		return fmt.Errorf("responder side: %w", respRes.err)
	}
	metrics.HandshakesCompleted.WithLabelValues("success").Inc()
	logger.Info("handshake completed",
		logger.String("handshake_id", fmt.Sprintf("%x", initRes.handshakeID)),
		logger.Duration("elapsed", time.Since(start)))

	fmt.Printf("handshake id:         %x\n", initRes.handshakeID)
	fmt.Printf("send key (initiator): %x\n", initRes.keys.SendKey)
	fmt.Printf("recv key (initiator): %x\n", initRes.keys.ReceiveKey)
	fmt.Printf("send key (responder): %x\n", respRes.keys.SendKey)
	fmt.Printf("ids match:            %v\n", respRes.handshakeID == initRes.handshakeID)
	fmt.Printf("keys cross-match:     %v\n", string(initRes.keys.SendKey) == string(respRes.keys.ReceiveKey))
	return nil
}
