// Copyright 2022 Google LLC
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

// Binary eqcomp compiles a theory and either writes the compiled
// ModelSpec as a protobuf-wire-format artifact or drops into an
// interactive shell for exercising the resulting Model.
package main

import (
	"flag"
	"fmt"
	"os"

	log "github.com/golang/glog"

	"github.com/eqlogc/eqc/compiler/protoout"
)

var (
	load = flag.String("load", "", "path to a theory source file to compile")
	out  = flag.String("out", "", "if non-empty, write the compiled ModelSpec artifact to this path and exit instead of starting the shell")
)

func main() {
	flag.Parse()

	sess := newSession(os.Stdout)

	if *load != "" {
		if err := sess.load(*load); err != nil {
			log.Exitf("eqcomp: loading %s: %v", *load, err)
		}
	}

	if *out != "" {
		if sess.spec == nil {
			log.Exit("eqcomp: -out given without -load: nothing to compile")
		}
		data := protoout.Marshal(sess.spec)
		if err := os.WriteFile(*out, data, 0o644); err != nil {
			log.Exitf("eqcomp: writing %s: %v", *out, err)
		}
		fmt.Fprintf(os.Stdout, "wrote %d bytes to %s\n", len(data), *out)
		return
	}

	if err := sess.loop(); err != nil {
		log.Exit(err)
	}
}
