/*
Copyright 2025 Cardpilot Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package drivers holds the driver implementations that ship with cardpilot.
// Provider-specific drivers are added here, one file per provider, and listed
// in Builtin for discovery.
package drivers

import "github.com/korelabs/cardpilot/driver"

// Builtin lists the drivers compiled into this binary, each carrying its
// catalog entry. The registry discovers them at startup; config selects which
// ones a run actually uses.
func Builtin() []driver.Descriptor {
	return []driver.Descriptor{
		{ProviderKey: DryRunProviderKey, Factory: NewDryRunDriver, Info: catalogInfo(DryRunProviderKey)},
	}
}
