/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package kubectl

import (
	"fmt"

	"k8s.io/client-go/tools/clientcmd"
)

// ClusterContext describes the kubeconfig context commands will run against.
type ClusterContext struct {
	Context   string
	Cluster   string
	Namespace string
}

// ResolveContext reads the kubeconfig the same way kubectl does (KUBECONFIG,
// then ~/.kube/config) unless kubeconfigPath is set, and returns the
// context named by override or the current context.
func ResolveContext(kubeconfigPath, override string) (ClusterContext, error) {
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfigPath != "" {
		loadingRules.ExplicitPath = kubeconfigPath
	}
	configOverrides := &clientcmd.ConfigOverrides{CurrentContext: override}
	kubeConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, configOverrides)

	raw, err := kubeConfig.RawConfig()
	if err != nil {
		return ClusterContext{}, fmt.Errorf("failed to load kubeconfig: %w", err)
	}

	name := raw.CurrentContext
	if override != "" {
		name = override
	}
	kctx, ok := raw.Contexts[name]
	if !ok || kctx == nil {
		return ClusterContext{}, fmt.Errorf("context %q not found in kubeconfig", name)
	}

	ns, _, err := kubeConfig.Namespace()
	if err != nil || ns == "" {
		ns = "default"
	}

	return ClusterContext{
		Context:   name,
		Cluster:   kctx.Cluster,
		Namespace: ns,
	}, nil
}

// String renders the context for display and prompts.
func (c ClusterContext) String() string {
	if c.Context == "" {
		return "unknown context"
	}
	return fmt.Sprintf("context %q (cluster %q, namespace %q)", c.Context, c.Cluster, c.Namespace)
}
