// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ccg builds and transforms a calling context graph (CCG) that
// disambiguates heap-allocation call contexts using per-allocation memory
// profile records.
//
// The graph is built from allocation records and their MIBs (§4.1), matched
// against the program's non-allocation callsites (§4.2), sanitized against
// multi-target callsites (§4.3), split by allocation-type cloning (§4.4-4.5),
// and finally mapped onto a minimal set of function clones (§4.6-4.7).
//
// The package is agnostic to where call and function identities come from:
// every operation is generic over an opaque Call and Func type pair, bound
// together by the Adapter capability set. Two concrete bindings live in the
// sibling ssaadapter and summaryadapter packages.
//
// The core performs no I/O and never blocks; everything here runs to
// completion on the calling goroutine.
package ccg
