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

package transport

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestConnSendRecvRoundTrip(t *testing.T) {
	echoed := make(chan struct{})
	server := NewServer(func(conn *Conn) {
		frame, err := conn.Recv()
		if err != nil {
			t.Errorf("server Recv: %v", err)
			close(echoed)
			return
		}
		if err := conn.Send(frame); err != nil {
			t.Errorf("server Send: %v", err)
		}
		close(echoed)
	})
	httpSrv := httptest.NewServer(server.Handler())
	defer httpSrv.Close()
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := DefaultDialer().Dial(ctx, wsURL)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	payload := []byte("pairing identity exchange payload")
	if err := conn.Send(payload); err != nil {
		t.Fatalf("client Send: %v", err)
	}

	got, err := conn.Recv()
	if err != nil {
		t.Fatalf("client Recv: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}

	<-echoed
}

func TestServerTracksAndClosesConnections(t *testing.T) {
	ready := make(chan struct{})
	block := make(chan struct{})
	server := NewServer(func(conn *Conn) {
		close(ready)
		<-block
	})
	httpSrv := httptest.NewServer(server.Handler())
	defer httpSrv.Close()

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := DefaultDialer().Dial(ctx, wsURL)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	<-ready
	if got := server.ConnectionCount(); got != 1 {
		t.Fatalf("expected 1 tracked connection, got %d", got)
	}

	close(block)
	if err := server.Close(); err != nil {
		t.Fatalf("server Close: %v", err)
	}
}
