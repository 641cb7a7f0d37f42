package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mosaicedu/mosaic/core"
	"github.com/mosaicedu/mosaic/retrieval"
)

// curriculumFile is the JSON layout of a curriculum bundle: the concept
// graph plus the passage corpus for keyword retrieval.
type curriculumFile struct {
	Concepts []struct {
		ID        string   `json:"id"`
		Name      string   `json:"name"`
		TopicArea string   `json:"topic_area"`
		Prereqs   []string `json:"prereqs"`
	} `json:"concepts"`
	Documents []struct {
		ID        string `json:"id"`
		TopicArea string `json:"topic_area"`
		Text      string `json:"text"`
	} `json:"documents"`
}

func loadCurriculum(path string) ([]core.ConceptNode, []retrieval.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read curriculum: %w", err)
	}
	var file curriculumFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, nil, fmt.Errorf("parse curriculum %s: %w", path, err)
	}

	nodes := make([]core.ConceptNode, 0, len(file.Concepts))
	for _, c := range file.Concepts {
		nodes = append(nodes, core.ConceptNode{
			ID:        c.ID,
			Name:      c.Name,
			TopicArea: c.TopicArea,
			Prereqs:   c.Prereqs,
		})
	}
	docs := make([]retrieval.Document, 0, len(file.Documents))
	for _, d := range file.Documents {
		docs = append(docs, retrieval.Document{ID: d.ID, TopicArea: d.TopicArea, Text: d.Text})
	}
	return nodes, docs, nil
}
