// Copyright 2025 Poiesic Systems
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


// Package graph maintains each user's concept graph: keyword nodes linked by
// co-occurrence edges that strengthen as the same pair keeps appearing.
//
// Writes for one user are serialized by the Store, so concurrent ingestions
// touching the same concept pair never lose an increment. Persistence is
// delegated to a storage.GraphRepository.
package graph
