package command

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

// Registry returns all CLI commands keyed by "service action".
func Registry() map[string]Command {
	commands := []Command{
		{
			Service:      "grade",
			Action:       "submit",
			Method:       "POST",
			PathTemplate: "/grade",
			Fields: []Field{
				{Name: "code", Aliases: []string{"student_code"}, Prompt: "student code", Type: FieldString, Required: true},
				{Name: "code_file", Prompt: "code_file", Type: FieldFile, Required: false},
				{Name: "test_file", Prompt: "test_file (path to .java or .zip)", Type: FieldFile, Required: true},
			},
		},
		{
			Service:      "grade",
			Action:       "status",
			Method:       "GET",
			PathTemplate: "/jobs/:id",
			Fields: []Field{
				{Name: "id", Aliases: []string{"job_id"}, Prompt: "job_id", Type: FieldString, Required: true},
			},
		},
		{
			Service:      "grade",
			Action:       "health",
			Method:       "GET",
			PathTemplate: "/health",
		},
	}

	result := make(map[string]Command, len(commands))
	for _, cmd := range commands {
		key := fmt.Sprintf("%s %s", cmd.Service, cmd.Action)
		result[key] = cmd
	}
	return result
}

// BuildRequest creates HTTP request spec based on command.
func BuildRequest(cmd Command, params Params) (RequestSpec, error) {
	params.Canonicalize(cmd.Fields)
	path, err := buildPath(cmd.PathTemplate, params)
	if err != nil {
		return RequestSpec{}, err
	}

	var body []byte
	if cmd.Method != "GET" && cmd.Method != "DELETE" {
		payload, err := buildPayload(cmd, params)
		if err != nil {
			return RequestSpec{}, err
		}
		if payload != nil {
			body, err = json.Marshal(payload)
			if err != nil {
				return RequestSpec{}, fmt.Errorf("marshal request body failed: %w", err)
			}
		}
	}

	return RequestSpec{
		Method:  cmd.Method,
		Path:    path,
		Headers: map[string]string{},
		Body:    body,
	}, nil
}

func buildPath(template string, params Params) (string, error) {
	path := template
	if strings.Contains(path, ":id") {
		value := params.Get("id")
		if value == "" {
			return "", fmt.Errorf("missing path parameter: id")
		}
		path = strings.ReplaceAll(path, ":id", value)
	}
	return path, nil
}

func buildPayload(cmd Command, params Params) (interface{}, error) {
	if cmd.Service == "grade" && cmd.Action == "submit" {
		return buildGradeSubmitPayload(params)
	}
	return nil, nil
}

func buildGradeSubmitPayload(params Params) (interface{}, error) {
	studentCode := params.Get("code")
	if (studentCode == "" || studentCode == "_file_") && params.Get("code_file") != "" {
		data, err := ReadFile(params.Get("code_file"))
		if err != nil {
			return nil, err
		}
		studentCode = string(data)
	}
	if studentCode == "" {
		return nil, fmt.Errorf("code is required")
	}

	testPath := params.Get("test_file")
	if testPath == "" {
		return nil, fmt.Errorf("test_file is required")
	}
	testData, err := ReadFile(testPath)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"studentCode":  studentCode,
		"testFileData": base64.StdEncoding.EncodeToString(testData),
		"testFileName": filepath.Base(testPath),
	}, nil
}
