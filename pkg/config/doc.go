// Package config loads colonyctl configuration and goal catalogs.
//
// # Components
//
// Config: the application configuration read from colony.yaml. It is decoded
// over Default with gopkg.in/yaml.v3 (unknown keys are rejected) and checked
// with go-playground/validator struct tags.
//
// CatalogLoader: reads a catalog file. The raw document is unified with the
// CUE #Catalog schema, then decoded and checked with validator tags, then
// converted into a goals.Catalog. Kind names are matched loosely, so
// "power_plant" and "PowerPlant" are the same kind.
//
// SchemaRegistry: the compiled CUE schemas.
//
// CatalogWatcher: reloads a catalog with fsnotify when its file changes,
// debounced by DefaultReloadDelay.
//
// # Catalog File
//
//	version: 1
//	name: red-valley
//	goals:
//	  - id: outpost
//	    viability: 10
//	    requirements:
//	      - {kind: Habitat, count: 2}
//	      - {kind: Farm, count: 1}
//	    extras:
//	      - {kind: Park, count: 1}
//	presets:
//	  easy:
//	    - id: easy-farms
//	      requirements: [{kind: Farm, count: 2}]
//	  hard:
//	    - id: hard-industry
//	      requirements: [{kind: Refinery, count: 2}]
//	infinite_play:
//	  crossover_fraction: 1.5
//	  easy_increment: 5
//	  hard_increment: 10
//	stats:
//	  Habitat: {viability: 3, happiness: 1, power: -1, sustenance: -1}
package config
