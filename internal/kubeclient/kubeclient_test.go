// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package kubeclient

import (
	"context"
	"testing"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

func TestRemoveNodeTaint(t *testing.T) {
	node := &corev1.Node{
		ObjectMeta: metav1.ObjectMeta{Name: "node-1"},
		Spec: corev1.NodeSpec{
			Taints: []corev1.Taint{
				{Key: DefaultStartupTaintKey, Effect: corev1.TaintEffectNoSchedule},
				{Key: "node.kubernetes.io/unreachable", Effect: corev1.TaintEffectNoExecute},
			},
		},
	}
	clientset := fake.NewSimpleClientset(node)
	c := NewWithClient(clientset, logr.Discard())

	if err := c.RemoveNodeTaint(context.Background(), "node-1", DefaultStartupTaintKey); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updated, err := clientset.CoreV1().Nodes().Get(context.Background(), "node-1", metav1.GetOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(updated.Spec.Taints) != 1 {
		t.Fatalf("expected 1 remaining taint, got %v", updated.Spec.Taints)
	}
	if updated.Spec.Taints[0].Key != "node.kubernetes.io/unreachable" {
		t.Errorf("wrong taint removed, remaining %v", updated.Spec.Taints)
	}
}

func TestRemoveNodeTaintAbsent(t *testing.T) {
	node := &corev1.Node{
		ObjectMeta: metav1.ObjectMeta{Name: "node-1"},
	}
	clientset := fake.NewSimpleClientset(node)
	c := NewWithClient(clientset, logr.Discard())

	if err := c.RemoveNodeTaint(context.Background(), "node-1", DefaultStartupTaintKey); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	actions := clientset.Actions()
	for _, action := range actions {
		if action.GetVerb() == "update" {
			t.Errorf("no update expected when the taint is absent, got %v", actions)
		}
	}
}

func TestRemoveNodeTaintMissingNode(t *testing.T) {
	c := NewWithClient(fake.NewSimpleClientset(), logr.Discard())

	if err := c.RemoveNodeTaint(context.Background(), "node-1", DefaultStartupTaintKey); err == nil {
		t.Fatal("expected an error for a missing node")
	}
}
