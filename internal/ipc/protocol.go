/*
 * Copyright 2022 The Gremlins Authors
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

// Package ipc defines the line-delimited JSON messages exchanged between the
// parent process and a worker process over the worker's stdin/stdout.
//
// Messages are externally tagged, one variant key per line, mirroring the
// wire format of the Rust implementation this protocol was ported from:
// {"MutationRequest": {...}}, {"Shutdown": null}, and so on. Go has no enum
// type that serializes this way natively, so UpstreamMessage and
// DownstreamMessage implement json.Marshaler/Unmarshaler by hand, each
// holding at most one populated variant.
package ipc

import (
	"encoding/json"
	"fmt"

	"github.com/pathogen-dev/pathogen/internal/language"
)

// MutationRequest asks a worker to apply one mutation and run its targeted
// test. It is created fresh for every dispatch and never retained.
type MutationRequest struct {
	FilePath       string            `json:"file_path"`
	MutatedContent string            `json:"mutated_content"`
	MutationID     string            `json:"mutation_id"`
	WorkspaceDir   string            `json:"workspace_dir"`
	Language       language.Language `json:"language"`
}

// TestResult is a worker's verdict on one MutationRequest. Success means the
// test suite passed with the mutant in place, i.e. the mutation survived.
type TestResult struct {
	Success         bool   `json:"success"`
	Output          string `json:"output"`
	ExecutionTimeMs int64  `json:"execution_time_ms"`
	MutationID      string `json:"mutation_id"`
}

// Prefixes applied to TestResult.Output to signal a non-behavioral outcome.
const (
	PrefixTimeout        = "TIMEOUT: "
	PrefixFileError      = "FILE_ERROR: "
	PrefixExecutionError = "EXECUTION_ERROR: "
	PrefixNoTests        = "NO_TESTS: "
)

// UpstreamMessage is sent by the parent to a worker. Exactly one of its
// fields is populated.
type UpstreamMessage struct {
	MutationRequest *MutationRequest
	Shutdown        bool
}

// NewMutationRequestMessage wraps a MutationRequest as an UpstreamMessage.
func NewMutationRequestMessage(req MutationRequest) UpstreamMessage {
	return UpstreamMessage{MutationRequest: &req}
}

// NewUpstreamShutdown builds the Shutdown variant of UpstreamMessage.
func NewUpstreamShutdown() UpstreamMessage {
	return UpstreamMessage{Shutdown: true}
}

// MarshalJSON renders the populated variant as a single-key object, matching
// serde's default externally-tagged enum representation.
func (m UpstreamMessage) MarshalJSON() ([]byte, error) {
	switch {
	case m.MutationRequest != nil:
		return json.Marshal(map[string]*MutationRequest{"MutationRequest": m.MutationRequest})
	case m.Shutdown:
		return []byte(`{"Shutdown":null}`), nil
	default:
		return nil, fmt.Errorf("ipc: empty UpstreamMessage")
	}
}

// UnmarshalJSON parses whichever single-key variant is present.
func (m *UpstreamMessage) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if v, ok := raw["MutationRequest"]; ok {
		var req MutationRequest
		if err := json.Unmarshal(v, &req); err != nil {
			return err
		}
		m.MutationRequest = &req

		return nil
	}
	if _, ok := raw["Shutdown"]; ok {
		m.Shutdown = true

		return nil
	}

	return fmt.Errorf("ipc: unrecognised upstream message %s", b)
}

// DownstreamMessage is sent by a worker to the parent. Exactly one of its
// fields is populated.
type DownstreamMessage struct {
	Ready      bool
	TestResult *TestResult
	Shutdown   bool
	Error      *string
}

// NewReadyMessage builds the Ready variant of DownstreamMessage.
func NewReadyMessage() DownstreamMessage {
	return DownstreamMessage{Ready: true}
}

// NewTestResultMessage wraps a TestResult as a DownstreamMessage.
func NewTestResultMessage(r TestResult) DownstreamMessage {
	return DownstreamMessage{TestResult: &r}
}

// NewDownstreamShutdown builds the Shutdown variant of DownstreamMessage.
func NewDownstreamShutdown() DownstreamMessage {
	return DownstreamMessage{Shutdown: true}
}

// NewErrorMessage builds the Error variant of DownstreamMessage.
func NewErrorMessage(msg string) DownstreamMessage {
	return DownstreamMessage{Error: &msg}
}

// MarshalJSON renders the populated variant as a single-key object.
func (m DownstreamMessage) MarshalJSON() ([]byte, error) {
	switch {
	case m.Ready:
		return []byte(`{"Ready":null}`), nil
	case m.TestResult != nil:
		return json.Marshal(map[string]*TestResult{"TestResult": m.TestResult})
	case m.Shutdown:
		return []byte(`{"Shutdown":null}`), nil
	case m.Error != nil:
		return json.Marshal(map[string]string{"Error": *m.Error})
	default:
		return nil, fmt.Errorf("ipc: empty DownstreamMessage")
	}
}

// UnmarshalJSON parses whichever single-key variant is present.
func (m *DownstreamMessage) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if _, ok := raw["Ready"]; ok {
		m.Ready = true

		return nil
	}
	if v, ok := raw["TestResult"]; ok {
		var r TestResult
		if err := json.Unmarshal(v, &r); err != nil {
			return err
		}
		m.TestResult = &r

		return nil
	}
	if _, ok := raw["Shutdown"]; ok {
		m.Shutdown = true

		return nil
	}
	if v, ok := raw["Error"]; ok {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return err
		}
		m.Error = &s

		return nil
	}

	return fmt.Errorf("ipc: unrecognised downstream message %s", b)
}
