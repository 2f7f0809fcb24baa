// Copyright 2024 guestshare Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package testutil

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"guestshare/internal/host"
	"guestshare/internal/util"
)

// NullLogger returns a logger that records entries instead of printing.
func NullLogger() (*logrus.Entry, *logtest.Hook) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.TraceLevel)
	return logrus.NewEntry(logger), hook
}

// FastRetry retries twice with no meaningful delay.
func FastRetry(ctx context.Context) []retry.Option {
	return []retry.Option{
		retry.Attempts(2),
		retry.Delay(time.Millisecond),
		retry.RetryIf(util.IsRetryable),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	}
}

// NewHost wires fakes into a host.Host with fast retries and a null logger.
func NewHost(sys *FakeSystem, run *FakeRunner) *host.Host {
	entry, _ := NullLogger()
	h := host.New(sys, run, entry)
	h.RetryOptions = FastRetry
	return h
}
