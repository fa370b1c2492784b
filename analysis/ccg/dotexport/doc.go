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

// Package dotexport renders a calling context graph snapshot to Graphviz
// dot source, for the exportDot option's at-each-major-stage dump.
//
// It builds a throwaway internal/graphutil.CGraph view over the live graph
// (node ids, a label per node, and callee-edge successors, which keeps
// internal/graphutil free of any import of this module's ccg package) and
// hands that straight to gonum's own dot encoder, rather than reaching for a
// dedicated Graphviz binding: gonum is already a direct dependency of
// internal/graphutil, and its graph/encoding/dot package needs nothing
// beyond the graph.Graph interface CGraph implements and the label
// attribute each CNode carries.
package dotexport
