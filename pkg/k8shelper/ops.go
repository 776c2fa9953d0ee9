package k8shelper

import (
	"context"
	"errors"
	"fmt"
	"strings"

	argo "github.com/argoproj/argo-rollouts/pkg/apis/rollouts/v1alpha1"
	"github.com/truefoundry/idlefleet/pkg/capacity"
	"github.com/truefoundry/idlefleet/pkg/values"
	"go.uber.org/zap"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/utils/ptr"
	ctrl "sigs.k8s.io/controller-runtime"
)

var ErrUnsupportedKind = errors.New("unsupported target kind")

// ServiceOps scales a Deployment or an Argo Rollout, standing in for the
// service resource. The cluster identifier is the namespace and the service
// identifier is the target name.
type ServiceOps struct {
	kind           string
	kClient        kubernetes.Interface
	kDynamicClient dynamic.Interface
	logger         *zap.Logger
}

// GetConfig resolves the kubeconfig the same way controller-runtime does:
// --kubeconfig, KUBECONFIG, in-cluster, then ~/.kube/config
func GetConfig() (*rest.Config, error) {
	config, err := ctrl.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("GetConfig: %w", err)
	}
	return config, nil
}

// NewServiceOps creates ServiceOps for the given kind from a rest config
func NewServiceOps(logger *zap.Logger, config *rest.Config, kind string) (*ServiceOps, error) {
	kClient, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("NewServiceOps - kubernetes client: %w", err)
	}
	kDynamicClient, err := dynamic.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("NewServiceOps - dynamic client: %w", err)
	}
	return NewServiceOpsWithClients(logger, kClient, kDynamicClient, kind)
}

// NewServiceOpsWithClients creates ServiceOps around existing clients
func NewServiceOpsWithClients(logger *zap.Logger, kClient kubernetes.Interface, kDynamicClient dynamic.Interface, kind string) (*ServiceOps, error) {
	kind, err := normalizeKind(kind)
	if err != nil {
		return nil, err
	}
	return &ServiceOps{
		kind:           kind,
		kClient:        kClient,
		kDynamicClient: kDynamicClient,
		logger:         logger.Named("k8sOps"),
	}, nil
}

// normalizeKind maps the accepted spellings of a target kind onto the resource name
func normalizeKind(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "deployments", "deployment":
		return values.KindDeployments, nil
	case "rollouts", "rollout":
		return values.KindRollout, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedKind, kind)
}

// UpdateService patches spec.replicas of the target with one call
func (k *ServiceOps) UpdateService(ctx context.Context, namespace, name string, c capacity.ServiceCapacity) error {
	switch k.kind {
	case values.KindDeployments:
		if err := k.ScaleDeployment(ctx, namespace, name, c.DesiredCount); err != nil {
			return fmt.Errorf("UpdateService - Deployment: %w", err)
		}
	case values.KindRollout:
		if err := k.ScaleArgoRollout(ctx, namespace, name, c.DesiredCount); err != nil {
			return fmt.Errorf("UpdateService - Rollout: %w", err)
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedKind, k.kind)
	}
	return nil
}

// ScaleDeployment sets the deployment replicas
func (k *ServiceOps) ScaleDeployment(ctx context.Context, ns, targetName string, replicas int32) error {
	patchBytes, err := replicasPatch(replicas)
	if err != nil {
		return err
	}
	deploy, err := k.kClient.AppsV1().Deployments(ns).Patch(ctx, targetName, types.MergePatchType, patchBytes, metav1.PatchOptions{})
	if err != nil {
		return fmt.Errorf("ScaleDeployment - Patch: %w", err)
	}
	k.logger.Info("Deployment scaled",
		zap.String("deployment", targetName),
		zap.String("namespace", ns),
		zap.Int32("replicas", ptr.Deref(deploy.Spec.Replicas, 0)))
	return nil
}

// ScaleArgoRollout sets the rollout replicas
func (k *ServiceOps) ScaleArgoRollout(ctx context.Context, ns, targetName string, replicas int32) error {
	patchBytes, err := replicasPatch(replicas)
	if err != nil {
		return err
	}
	obj, err := k.kDynamicClient.Resource(values.RolloutGVR).Namespace(ns).Patch(
		ctx,
		targetName,
		types.MergePatchType,
		patchBytes,
		metav1.PatchOptions{},
	)
	if err != nil {
		return fmt.Errorf("ScaleArgoRollout - Patch: %w", err)
	}

	rollout := &argo.Rollout{}
	if err := UnstructuredToResource(obj, rollout); err != nil {
		return fmt.Errorf("ScaleArgoRollout - decode: %w", err)
	}
	k.logger.Info("Rollout scaled",
		zap.String("rollout", targetName),
		zap.String("namespace", ns),
		zap.Int32("replicas", ptr.Deref(rollout.Spec.Replicas, 0)))
	return nil
}
