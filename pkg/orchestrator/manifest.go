package orchestrator

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	utilyaml "k8s.io/apimachinery/pkg/util/yaml"
	"sigs.k8s.io/yaml"
)

// Document is one object of a multi-document manifest
type Document struct {
	Kind string
	Name string
	Raw  []byte
}

// SplitManifest splits a YAML stream into its objects. Every object must
// carry a kind and a metadata.name.
func SplitManifest(manifest []byte) ([]Document, error) {
	reader := utilyaml.NewYAMLReader(bufio.NewReader(bytes.NewReader(manifest)))

	var docs []Document
	for {
		raw, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read manifest: %w", err)
		}
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}

		var head struct {
			metav1.TypeMeta `json:",inline"`
			Metadata        metav1.ObjectMeta `json:"metadata"`
		}
		if err := yaml.Unmarshal(raw, &head); err != nil {
			return nil, fmt.Errorf("document %d: %w", len(docs)+1, err)
		}
		if head.Kind == "" && head.APIVersion == "" && head.Metadata.Name == "" {
			// comment-only document
			continue
		}
		if head.Kind == "" || head.Metadata.Name == "" {
			return nil, fmt.Errorf("document %d: kind and metadata.name are required", len(docs)+1)
		}
		docs = append(docs, Document{Kind: head.Kind, Name: head.Metadata.Name, Raw: raw})
	}

	if len(docs) == 0 {
		return nil, fmt.Errorf("manifest contains no objects")
	}
	return docs, nil
}
