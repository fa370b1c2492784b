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

// Package summaryadapter binds ccg.Adapter to an in-memory whole-program
// summary index instead of a live IR module, for callers that only have a
// serialized summary (produced by an earlier build, or shipped alongside a
// binary) rather than source they can rewrite in place.
//
// Function clones never get their own IR here: the summary format has no
// notion of "a new function", only versioned output slots attached to the
// original record. CloneFunctionForCallsite therefore allocates a new
// FuncID backed by the same underlying FuncRecord and records the clone
// number against it, rather than fabricating a new declaration. Outputs are
// appended to AllocRecord.Versions and CallRecord.Targets, which the caller is
// expected to serialize back out however its summary format requires; this
// package only maintains the in-memory index.
package summaryadapter
