// Copyright 2025 Tom Barlow
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

package flow

import (
	"time"
)

// TimeLayout is the textual timestamp format used throughout FlowSpec
// documents: ISO-8601 in UTC with microsecond precision and a Z suffix.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// timeNow is swapped out in tests.
var timeNow = time.Now

// nowZulu returns the current UTC time in TimeLayout.
func nowZulu() string {
	return timeNow().UTC().Format(TimeLayout)
}
