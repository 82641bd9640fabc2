// Copyright 2025 The FlowIR Authors.
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

package translate

// intrinsics are the scalar math functions that stay verbatim in
// tasklet bodies instead of being inlined as procedure calls.
var intrinsics = map[string]bool{
	"abs":  true,
	"exp":  true,
	"log":  true,
	"max":  true,
	"min":  true,
	"mod":  true,
	"pow":  true,
	"sign": true,
	"sqrt": true,
	"tanh": true,
}

func isIntrinsic(name string) bool { return intrinsics[name] }

// IsIntrinsic reports whether a name denotes a scalar math intrinsic.
// The frontend uses it to tell function references from subscripts.
func IsIntrinsic(name string) bool { return intrinsics[name] }
