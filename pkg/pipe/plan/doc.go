// Package plan loads pipelines described in YAML or TOML and turns them into
// routine trees.
//
// A plan is a root routine with tasks and nested routines. Tasks either run a
// shell command, whose trimmed stdout becomes their output, or a Lua chunk,
// whose returned value does. Every routine runs its tasks and then its child
// routines with its own strategy, passing the value along.
//
//	title: release
//	strategy: serial
//	tasks:
//	  - title: version
//	    run: git describe --tags
//	routines:
//	  - key: publish
//	    strategy: pool
//	    concurrency: 2
//	    tasks:
//	      - title: upload
//	        run: ./upload.sh "$WORKPIPE_VALUE"
package plan
