// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
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

/*
Package config provides a simple way to manage configuration files.

Use [Load](filename) to load a configuration from a specific filename.

Use [SetGlobalConfig](filename) to set filename as the global config, and then [LoadGlobal]() to load the global config.

A config file should be in yaml format. The top-level field is options, and the fields of the options are defined in
the [Options] struct type. Fields that are absent keep their default value (see [NewDefault]).
For example, a valid config file is as follows:

	options:
	  log-level: 4
	  path-builder: context-insensitive
	  max-threads: 8
	  reconstruct-paths: false

# Logging

[NewLogGroup] returns the leveled logger used by all the path builders. The levels go from [ErrLevel] (errors only)
to [TraceLevel] (every step of every traversal).
*/
package config
