package reconcile

import (
	"fmt"
	"strings"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/fabkube/fabkube/internal/topology"
)

const (
	fabricCAImage    = "hyperledger/fabric-ca:1.5"
	fabricToolsImage = "hyperledger/fabric-tools:2.5"
	kubectlImage     = "bitnami/kubectl:1.31"

	caServicePort      = 7054
	ordererServicePort = 7050
)

// jobName builds a RFC 1123 compliant job name from parts.
func jobName(parts ...string) string {
	return strings.ToLower(strings.Join(parts, "-"))
}

// caServiceHost is the in-cluster address of a CA release.
func caServiceHost(ca *topology.CA) string {
	return fmt.Sprintf("%s-hlf-ca.%s.svc.cluster.local:%d", ca.Name, ca.Namespace, caServicePort)
}

// ordererHost is the in-cluster address of the first node of an orderer
// group, used as the submission target for channel transactions.
func ordererHost(og *topology.OrdererGroup) string {
	return fmt.Sprintf("%s-%s-hlf-ord.%s.svc.cluster.local:%d",
		og.Name, og.Names[0], og.Namespace, ordererServicePort)
}

// enrollJob produces an MSP's org admin identity. An init container
// enrolls the CA bootstrap admin, registers the org admin with it, then
// enrolls the org admin into a shared volume; the main container stores
// the resulting MSP material as a secret. Registration tolerates an
// already-registered identity and enroll re-issues the same identity, so
// the job can be re-run.
func enrollJob(msp *topology.MSP, ca *topology.CA, caCredsSecret, orgCredsSecret, mspSecret string) *batchv1.Job {
	host := caServiceHost(ca)
	enroll := strings.Join([]string{
		fmt.Sprintf("fabric-ca-client enroll -d -u https://$CA_ADMIN_USERNAME:$CA_ADMIN_PASSWORD@%s", host),
		"fabric-ca-client identity list --id $ORG_ADMIN_USERNAME || " +
			"fabric-ca-client register --id.name $ORG_ADMIN_USERNAME --id.secret $ORG_ADMIN_PASSWORD --id.attrs 'admin=true:ecert'",
		fmt.Sprintf("FABRIC_CA_CLIENT_HOME=/shared fabric-ca-client enroll -d -u https://$ORG_ADMIN_USERNAME:$ORG_ADMIN_PASSWORD@%s", host),
	}, " && ")
	publish := fmt.Sprintf(
		"kubectl create secret generic %s"+
			" --from-file=cert.pem=$(ls /shared/msp/signcerts/*.pem)"+
			" --from-file=key.pem=$(ls /shared/msp/keystore/*)"+
			" --dry-run=client -o yaml | kubectl apply -f -", mspSecret)

	job := jobSpec(jobName(msp.Name, "enroll"), msp.Namespace, kubectlImage, publish)
	addInitContainer(job, "enroll", fabricCAImage, enroll,
		append(adminEnv("CA_ADMIN", caCredsSecret), adminEnv("ORG_ADMIN", orgCredsSecret)...)...)
	shareVolume(job, "shared", "/shared")
	return job
}

// channelCreateJob submits the channel creation transaction to the
// ordering service. The channel transaction is mounted from the channel
// artifact secret.
func channelCreateJob(channel, namespace, secretChannel string, og *topology.OrdererGroup) *batchv1.Job {
	script := fmt.Sprintf(
		"peer channel create -o %s -c %s -f /hl_config/channel/%s.tx",
		ordererHost(og), channel, channel)

	job := jobSpec(jobName("channel", channel, "create"), namespace, fabricToolsImage, script)
	mountSecret(job, "channel-artifacts", secretChannel, "/hl_config/channel")
	return job
}

// joinJob joins every peer of a group to the group's channel.
func joinJob(pg *topology.PeerGroup) *batchv1.Job {
	script := fmt.Sprintf(
		"peer channel fetch 0 /tmp/%s.block -c %s && peer channel join -b /tmp/%s.block",
		pg.ChannelName, pg.ChannelName, pg.ChannelName)

	job := jobSpec(jobName(pg.Name, "join"), pg.Namespace, fabricToolsImage, script)
	mountSecret(job, "channel-artifacts", pg.SecretChannel, "/hl_config/channel")
	return job
}

func jobSpec(name, namespace, image, script string, env ...corev1.EnvVar) *batchv1.Job {
	backoffLimit := int32(6)
	return &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
			Labels:    map[string]string{"app.kubernetes.io/managed-by": "fabkube"},
		},
		Spec: batchv1.JobSpec{
			BackoffLimit: &backoffLimit,
			Template: corev1.PodTemplateSpec{
				Spec: corev1.PodSpec{
					RestartPolicy: corev1.RestartPolicyNever,
					Containers: []corev1.Container{
						{
							Name:    "main",
							Image:   image,
							Command: []string{"sh", "-c", script},
							Env:     env,
						},
					},
				},
			},
		},
	}
}

// adminEnv exposes an admin credentials secret as <prefix>_USERNAME and
// <prefix>_PASSWORD.
func adminEnv(prefix, secretName string) []corev1.EnvVar {
	return []corev1.EnvVar{
		secretEnv(prefix+"_USERNAME", secretName, "username"),
		secretEnv(prefix+"_PASSWORD", secretName, "password"),
	}
}

func secretEnv(name, secretName, key string) corev1.EnvVar {
	return corev1.EnvVar{
		Name: name,
		ValueFrom: &corev1.EnvVarSource{
			SecretKeyRef: &corev1.SecretKeySelector{
				LocalObjectReference: corev1.LocalObjectReference{Name: secretName},
				Key:                  key,
			},
		},
	}
}

func addInitContainer(job *batchv1.Job, name, image, script string, env ...corev1.EnvVar) {
	podSpec := &job.Spec.Template.Spec
	podSpec.InitContainers = append(podSpec.InitContainers, corev1.Container{
		Name:    name,
		Image:   image,
		Command: []string{"sh", "-c", script},
		Env:     env,
	})
}

// shareVolume mounts an emptyDir into every container of the job pod.
func shareVolume(job *batchv1.Job, volumeName, mountPath string) {
	podSpec := &job.Spec.Template.Spec
	podSpec.Volumes = append(podSpec.Volumes, corev1.Volume{
		Name:         volumeName,
		VolumeSource: corev1.VolumeSource{EmptyDir: &corev1.EmptyDirVolumeSource{}},
	})
	mount := corev1.VolumeMount{Name: volumeName, MountPath: mountPath}
	for i := range podSpec.InitContainers {
		podSpec.InitContainers[i].VolumeMounts = append(podSpec.InitContainers[i].VolumeMounts, mount)
	}
	for i := range podSpec.Containers {
		podSpec.Containers[i].VolumeMounts = append(podSpec.Containers[i].VolumeMounts, mount)
	}
}

func mountSecret(job *batchv1.Job, volumeName, secretName, mountPath string) {
	podSpec := &job.Spec.Template.Spec
	podSpec.Volumes = append(podSpec.Volumes, corev1.Volume{
		Name: volumeName,
		VolumeSource: corev1.VolumeSource{
			Secret: &corev1.SecretVolumeSource{SecretName: secretName},
		},
	})
	container := &podSpec.Containers[0]
	container.VolumeMounts = append(container.VolumeMounts, corev1.VolumeMount{
		Name:      volumeName,
		MountPath: mountPath,
		ReadOnly:  true,
	})
}
