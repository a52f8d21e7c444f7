/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package protect

import "errors"

var (
	// ErrAuthenticationFailed is returned by a single login attempt that did not
	// produce a credential. GetCredential retries it internally.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrRequestRejected marks a request the controller refused for stale
	// authentication. Request recovers from it by logging in again.
	ErrRequestRejected = errors.New("request rejected: authentication required")
	// ErrRequestFailed wraps every other request failure and is surfaced to callers.
	ErrRequestFailed = errors.New("request failed")
	// ErrDecodeFailed is recorded for realtime frames neither decode path accepts.
	ErrDecodeFailed = errors.New("realtime frame decode failed")
	// ErrStreamDisconnected is logged when the realtime connection drops.
	ErrStreamDisconnected = errors.New("realtime stream disconnected")
	// ErrSessionStopped is returned once Shutdown has been called.
	ErrSessionStopped = errors.New("session stopped")
	// ErrChannelClosed is returned by Connect after Close.
	ErrChannelClosed = errors.New("realtime channel closed")

	errMissingCredential = errors.New("login response carried no session cookie")
	errInvalidJSON       = errors.New("response body is not valid JSON")
	errNilHandler        = errors.New("interest handler must not be nil")
	errEmptyConsumerID   = errors.New("consumer id must not be empty")
)
