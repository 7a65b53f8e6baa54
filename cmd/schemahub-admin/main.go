/*
 * Copyright 2025 SchemaHub Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// schemahub-admin is a command line client for the schema registry API.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

var (
	serverURL = flag.String("server", "http://localhost:8080", "Schema registry server URL")
	timeout   = flag.Duration("timeout", 30*time.Second, "Request timeout")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		usage()
		os.Exit(1)
	}

	client := &http.Client{Timeout: *timeout}

	var err error
	switch args[0] {
	case "upload":
		err = cmdUpload(client, args[1:])
	case "latest":
		err = cmdLatest(client, args[1:])
	case "versions":
		err = cmdVersions(client, args[1:])
	case "content":
		err = cmdContent(client, args[1:])
	case "apps":
		err = cmdApps(client)
	case "services":
		err = cmdServices(client, args[1:])
	case "health":
		err = cmdHealth(client)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `schemahub-admin - schema registry administration tool

Usage:
  schemahub-admin [flags] <command> [arguments]

Commands:
  upload <file> <application> [service]   Upload a schema file
  latest <application> [service]          Show the latest schema version
  versions <application> [service]        List all schema versions
  content <id>                            Show a stored schema document
  apps                                    List applications
  services <application>                  List services of an application
  health                                  Check server health

Flags:
`)
	flag.PrintDefaults()
}

func cmdUpload(client *http.Client, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: upload <file> <application> [service]")
	}
	file, application := args[0], args[1]
	service := ""
	if len(args) > 2 {
		service = args[2]
	}

	content, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", file, err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filepath.Base(file))
	if err != nil {
		return err
	}
	if _, err := part.Write(content); err != nil {
		return err
	}
	if err := writer.WriteField("application", application); err != nil {
		return err
	}
	if service != "" {
		if err := writer.WriteField("service", service); err != nil {
			return err
		}
	}
	if err := writer.Close(); err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, *serverURL+"/api/v1/schemas/upload", &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return doRequest(client, req)
}

func cmdLatest(client *http.Client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: latest <application> [service]")
	}
	return getJSON(client, "/api/v1/schemas/latest", scopeQuery(args))
}

func cmdVersions(client *http.Client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: versions <application> [service]")
	}
	return getJSON(client, "/api/v1/schemas/versions", scopeQuery(args))
}

func cmdContent(client *http.Client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: content <id>")
	}
	return getJSON(client, "/api/v1/schemas/"+args[0]+"/content", nil)
}

func cmdApps(client *http.Client) error {
	return getJSON(client, "/api/v1/applications", nil)
}

func cmdServices(client *http.Client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: services <application>")
	}
	return getJSON(client, "/api/v1/applications/"+url.PathEscape(args[0])+"/services", nil)
}

func cmdHealth(client *http.Client) error {
	return getJSON(client, "/health", nil)
}

func scopeQuery(args []string) url.Values {
	query := url.Values{}
	query.Set("application", args[0])
	if len(args) > 1 {
		query.Set("service", args[1])
	}
	return query
}

func getJSON(client *http.Client, path string, query url.Values) error {
	u := *serverURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return doRequest(client, req)
}

func doRequest(client *http.Client, req *http.Request) error {
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	// Pretty-print JSON responses; pass anything else through as-is
	var pretty bytes.Buffer
	if json.Indent(&pretty, data, "", "  ") == nil {
		fmt.Println(pretty.String())
	} else {
		fmt.Println(string(data))
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	return nil
}
