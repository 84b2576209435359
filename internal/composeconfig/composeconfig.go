// Package composeconfig propagates the operator's canonical configuration
// into the sub-stack checkout and patches the one compose file that needs
// an extra published port.
package composeconfig

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/local-ai-packaged/orchestrator/internal/fsutil"
	"github.com/local-ai-packaged/orchestrator/internal/logging"
)

// PoolerServiceKey is the logical service name of the database-connection
// pooler in the sub-stack's compose document.
const PoolerServiceKey = "supavisor"

// PoolerPort is the well-known port the pooler must additionally publish so
// sibling containers in the AI stack can reach it directly.
const PoolerPort = 6543

// CopyEnvToSubRepo copies the canonical config file into the sub-stack's
// expected location, overwriting any prior copy and mirroring the source
// file's permissions.
func CopyEnvToSubRepo(envPath, subrepoDockerDir string) error {
	info, err := os.Stat(envPath)
	if err != nil {
		return fmt.Errorf("composeconfig: stat %s: %w", envPath, err)
	}

	src, err := os.Open(envPath) // #nosec G304 -- envPath is the operator's own canonical config path
	if err != nil {
		return fmt.Errorf("composeconfig: open %s: %w", envPath, err)
	}
	defer src.Close()

	destPath := subrepoDockerDir + "/.env"
	dest, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("composeconfig: open %s: %w", destPath, err)
	}
	defer dest.Close()

	if _, err := io.Copy(dest, src); err != nil {
		return fmt.Errorf("composeconfig: copy to %s: %w", destPath, err)
	}
	if err := dest.Chmod(info.Mode().Perm()); err != nil {
		return fmt.Errorf("composeconfig: chmod %s: %w", destPath, err)
	}

	return nil
}

// PatchSubRepoCompose ensures the pooler service in the sub-stack compose
// file publishes PoolerPort. It is a no-op if the mapping is already
// present, and only rewrites the file (atomically) if it changed.
func PatchSubRepoCompose(composePath string, logger *logging.Logger) error {
	content, err := fsutil.ReadText(composePath)
	if err != nil {
		return fmt.Errorf("composeconfig: read %s: %w", composePath, err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal([]byte(content), &root); err != nil {
		return fmt.Errorf("composeconfig: parse %s: %w", composePath, err)
	}

	poolerPorts, found := findPoolerPortsNode(&root)
	if !found {
		return fmt.Errorf("composeconfig: service %q not found in %s", PoolerServiceKey, composePath)
	}

	mapping := fmt.Sprintf("%d:%d", PoolerPort, PoolerPort)
	if hasPortMapping(poolerPorts, mapping) {
		logger.Debug("composeconfig.patch.noop", "pooler port already published", map[string]interface{}{
			"mapping": mapping,
		})
		return nil
	}

	appendScalar(poolerPorts, mapping)

	rendered, err := marshalPreservingStyle(&root)
	if err != nil {
		return fmt.Errorf("composeconfig: render %s: %w", composePath, err)
	}

	if err := fsutil.ReplaceAtomically(composePath, rendered, logger); err != nil {
		return fmt.Errorf("composeconfig: write %s: %w", composePath, err)
	}

	logger.Info("composeconfig.patch.applied", "published pooler port", map[string]interface{}{
		"mapping": mapping,
	})
	return nil
}

// findPoolerPortsNode walks the document to the services.<PoolerServiceKey>.ports
// sequence node, creating it if the service exists but has no ports key.
func findPoolerPortsNode(root *yaml.Node) (*yaml.Node, bool) {
	doc := root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) == 1 {
		doc = doc.Content[0]
	}

	services, ok := mapValue(doc, "services")
	if !ok {
		return nil, false
	}

	service, ok := mapValue(services, PoolerServiceKey)
	if !ok {
		return nil, false
	}

	ports, ok := mapValue(service, "ports")
	if !ok {
		ports = &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		service.Content = append(service.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: "ports"},
			ports,
		)
	}

	return ports, true
}

// mapValue looks up key in a YAML mapping node.
func mapValue(node *yaml.Node, key string) (*yaml.Node, bool) {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil, false
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1], true
		}
	}
	return nil, false
}

func hasPortMapping(ports *yaml.Node, mapping string) bool {
	for _, entry := range ports.Content {
		if entry.Value == mapping {
			return true
		}
	}
	return false
}

func appendScalar(seq *yaml.Node, value string) {
	seq.Content = append(seq.Content, &yaml.Node{
		Kind:  yaml.ScalarNode,
		Tag:   "!!str",
		Value: value,
	})
}

func marshalPreservingStyle(root *yaml.Node) (string, error) {
	out, err := yaml.Marshal(root)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
