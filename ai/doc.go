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


// Package ai defines the embedding abstraction used by ingestion and search.
//
// Business logic depends on the Embedder interface only. Implementations live
// in sub-packages:
//
//   - ai/openai: OpenAI-compatible endpoints (Ollama, LocalAI, vLLM, OpenAI) via langchaingo
//   - ai/breaker: a circuit breaker decorator for any Embedder
//   - ai/mock: deterministic test doubles
//
// Public constructors return interfaces. The mock package also exposes its
// concrete types so tests can inject behavior and inspect call counts.
//
//	provider, err := openai.NewProvider(ai.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vec, err := provider.Embedder().EmbedText(ctx, "Hello world")
package ai
