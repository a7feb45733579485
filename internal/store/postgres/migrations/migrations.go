// Copyright (c) 2026 TailorFit Labs
//
// This file is part of tailorfit.
//
// tailorfit is licensed under the GNU Affero General Public License v3.0.
// See the LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

// Package migrations embeds the goose SQL migrations applied by the store on
// startup.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
