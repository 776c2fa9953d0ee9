package k8shelper

import (
	"encoding/json"
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
)

// UnstructuredToResource converts an unstructured object into a typed resource
func UnstructuredToResource(obj *unstructured.Unstructured, resource interface{}) error {
	err := runtime.DefaultUnstructuredConverter.FromUnstructured(obj.UnstructuredContent(), resource)
	if err != nil {
		return fmt.Errorf("UnstructuredToResource: %w", err)
	}
	return nil
}

// replicasPatch is an absolute assignment of spec.replicas
func replicasPatch(replicas int32) ([]byte, error) {
	patch := map[string]interface{}{
		"spec": map[string]interface{}{
			"replicas": replicas,
		},
	}
	patchBytes, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("replicasPatch: %w", err)
	}
	return patchBytes, nil
}
