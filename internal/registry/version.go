// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fabriq Contributors

package registry

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// PlatformVersion is the version of the running platform that plugin
// compatibility is checked against.
const PlatformVersion = "1.4.0"

// checkCompatibility decides whether a plugin declaring required may
// run on platform. Compatible iff both share a major version and the
// required minor does not exceed the platform minor; patch levels are
// never considered. A plugin requiring a newer minor may depend on
// behavior the platform does not have yet.
func checkCompatibility(pluginName string, required, platform *semver.Version) error {
	if required.Major() != platform.Major() || required.Minor() > platform.Minor() {
		return &IncompatibleError{
			Plugin:   pluginName,
			Required: fmt.Sprintf("%d.%d", required.Major(), required.Minor()),
			Platform: fmt.Sprintf("%d.%d", platform.Major(), platform.Minor()),
		}
	}
	return nil
}

// Compatible reports whether a plugin requiring version required runs
// on a platform at version platform. Both are parsed as semver;
// MAJOR.MINOR forms are accepted.
func Compatible(required, platform string) (bool, error) {
	req, err := semver.NewVersion(required)
	if err != nil {
		return false, fmt.Errorf("invalid required version %q: %w", required, err)
	}
	plat, err := semver.NewVersion(platform)
	if err != nil {
		return false, fmt.Errorf("invalid platform version %q: %w", platform, err)
	}
	return checkCompatibility("", req, plat) == nil, nil
}
