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

package handshake

import "errors"

// State is a node in the handshake driver's state machine (spec §4.6).
type State int

const (
	StateIdle State = iota
	StateSentA
	StateVerified
	StateSentFinished
	StateEstablished

	// StateSentB is the responder-side counterpart to StateSentA: it has
	// replied with MessageB and is waiting on the initiator's Finished.
	StateSentB

	// Terminal error states. A driver that reaches any of these never
	// transitions again; a fresh handshake attempt requires a new driver.
	StateAuthFailed
	StatePolicyViolation
	StateTimeout
	StateReplay
	StateDowngrade
	StateSuiteNegotiationFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSentA:
		return "sentA"
	case StateVerified:
		return "verified"
	case StateSentFinished:
		return "sentFinished"
	case StateEstablished:
		return "established"
	case StateSentB:
		return "sentB"
	case StateAuthFailed:
		return "authFailed"
	case StatePolicyViolation:
		return "policyViolation"
	case StateTimeout:
		return "timeout"
	case StateReplay:
		return "replay"
	case StateDowngrade:
		return "downgrade"
	case StateSuiteNegotiationFailed:
		return "suiteNegotiationFailed"
	default:
		return "unknown"
	}
}

// Terminal error and failure-classification sentinels (spec §4.6,
// §4.11, §7's taxonomy, the handshake-facing subset).
var (
	ErrAuthFailed             = errors.New("handshake: authentication failed")
	ErrPolicyViolation        = errors.New("handshake: policy violation")
	ErrReplayDetected         = errors.New("handshake: replay detected")
	ErrDowngrade              = errors.New("handshake: downgrade detected")
	ErrSuiteNegotiationFailed = errors.New("handshake: suite negotiation failed")
	ErrWrongState             = errors.New("handshake: operation not valid in current state")
	ErrNoUsableSuite          = errors.New("handshake: no offered suite has a usable key share")
)
