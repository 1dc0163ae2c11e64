package handlers

import (
	"encoding/json"
	"testing"
)

func TestOpenAPIListsEveryTool(t *testing.T) {
	var doc struct {
		Paths map[string]struct {
			Post *struct {
				Parameters []struct {
					Name   string `json:"name"`
					Schema struct {
						Enum []string `json:"enum"`
					} `json:"schema"`
				} `json:"parameters"`
			} `json:"post"`
		} `json:"paths"`
	}
	if err := json.Unmarshal(openAPIDocument, &doc); err != nil {
		t.Fatalf("openapi.json is invalid: %v", err)
	}
	tool, ok := doc.Paths["/v1/tools/{name}"]
	if !ok || tool.Post == nil {
		t.Fatalf("tool path missing")
	}
	documented := map[string]bool{}
	for _, p := range tool.Post.Parameters {
		if p.Name == "name" {
			for _, v := range p.Schema.Enum {
				documented[v] = true
			}
		}
	}
	for _, name := range ToolNames() {
		if !documented[name] {
			t.Fatalf("tool %q missing from openapi.json", name)
		}
	}
}
