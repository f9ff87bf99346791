// Copyright 2020 ConsenSys Software Inc.
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

package propagate

import "github.com/palmenros/circuitsafe/internal/graph"

// Observer is notified once before the first propagation sweep of every
// frame and once after each sweep, so the
// diagram renderer can snapshot the verification graph between propagation
// sweeps without the propagator itself knowing anything about SVGs. A nil
// Observer is the default, no-op case.
type Observer interface {
	OnSweep(fr *graph.Frame, componentName, templateName string)
}

type observerFunc func(fr *graph.Frame, componentName, templateName string)

func (f observerFunc) OnSweep(fr *graph.Frame, componentName, templateName string) {
	f(fr, componentName, templateName)
}

// ObserverFunc adapts a plain function to the Observer interface.
func ObserverFunc(f func(fr *graph.Frame, componentName, templateName string)) Observer {
	return observerFunc(f)
}
