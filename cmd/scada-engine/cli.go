// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import "flag"

var (
	flagConfigFile, flagTagsFile, flagAlarmsFile string
	flagGops                                     bool
)

func cliInit() {
	flag.StringVar(&flagConfigFile, "config", "./config.json", "Specify alternative path to `config.json`")
	flag.StringVar(&flagTagsFile, "import-tags", "", "Import additional tag definitions from `tags.csv` at startup")
	flag.StringVar(&flagAlarmsFile, "import-alarms", "", "Import additional alarm definitions from `alarms.csv` at startup")
	flag.BoolVar(&flagGops, "gops", false, "Listen via github.com/google/gops/agent (for debugging)")
	flag.Parse()
}
