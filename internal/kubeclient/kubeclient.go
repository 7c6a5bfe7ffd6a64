// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package kubeclient removes the startup taint that keeps workloads off a
// node until its ephemeral storage is configured.
package kubeclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/util/retry"
)

// DefaultStartupTaintKey is the taint the cluster autoscaler places on
// nodes whose local disks are not yet configured.
const DefaultStartupTaintKey = "startup-taint.cluster-autoscaler.kubernetes.io/disk-unconfigured"

const requestTimeout = 30 * time.Second

// Client wraps the node operations needed after convergence.
type Client struct {
	kube kubernetes.Interface
	log  logr.Logger
}

// New builds a Client from the in-cluster service account config.
func New(log logr.Logger) (*Client, error) {
	config, err := rest.InClusterConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load in-cluster config: %w", err)
	}
	config.Timeout = requestTimeout

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}
	return NewWithClient(clientset, log), nil
}

// NewWithClient wraps an existing clientset, for tests.
func NewWithClient(kube kubernetes.Interface, log logr.Logger) *Client {
	return &Client{
		kube: kube,
		log:  log,
	}
}

// RemoveNodeTaint removes every taint with the given key from the node,
// retrying on update conflicts. A node that never had the taint is a
// no-op.
func (c *Client) RemoveNodeTaint(ctx context.Context, nodeName, taintKey string) error {
	return retry.RetryOnConflict(retry.DefaultRetry, func() error {
		node, err := c.kube.CoreV1().Nodes().Get(ctx, nodeName, metav1.GetOptions{})
		if err != nil {
			return fmt.Errorf("failed to get node %s: %w", nodeName, err)
		}

		kept := make([]corev1.Taint, 0, len(node.Spec.Taints))
		for _, taint := range node.Spec.Taints {
			if taint.Key == taintKey {
				continue
			}
			kept = append(kept, taint)
		}
		if len(kept) == len(node.Spec.Taints) {
			c.log.V(1).Info("taint not present", "node", nodeName, "key", taintKey)
			return nil
		}

		node.Spec.Taints = kept
		if _, err := c.kube.CoreV1().Nodes().Update(ctx, node, metav1.UpdateOptions{}); err != nil {
			return err
		}
		c.log.Info("removed startup taint", "node", nodeName, "key", taintKey)
		return nil
	})
}
