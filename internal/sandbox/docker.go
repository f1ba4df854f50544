package sandbox

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/mount"
	"github.com/moby/moby/client"
)

// DockerExecutor runs candidates inside disposable containers with the
// network disabled. The contract matches ProcessExecutor; the container
// supplies the isolation.
type DockerExecutor struct {
	// Image is the python image to run. Empty means python:3.12-slim.
	Image string
	// Python is the interpreter inside the image. Empty means "python3".
	Python string
}

const defaultImage = "python:3.12-slim"

func (e *DockerExecutor) Execute(ctx context.Context, req *Request) (*Result, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}
	defer cli.Close()

	scratch, err := os.MkdirTemp("", "planbench-*")
	if err != nil {
		return nil, fmt.Errorf("creating scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	if _, err := writeProgram(scratch, req); err != nil {
		return nil, err
	}

	image := e.Image
	if image == "" {
		image = defaultImage
	}
	python := e.Python
	if python == "" {
		python = "python3"
	}

	initTrue := true
	hostCfg := &container.HostConfig{
		Mounts: []mount.Mount{
			{
				Type:     mount.TypeBind,
				Source:   scratch,
				Target:   "/sandbox",
				ReadOnly: true,
			},
		},
		Init: &initTrue,
	}
	containerCfg := &container.Config{
		Image: image,
		Cmd:   []string{python, "-I", "/sandbox/candidate.py"},
		// Tty merges stdout and stderr into one unframed stream, which is
		// all the log classifier needs.
		Tty:             true,
		NetworkDisabled: true,
		Labels:          map[string]string{"planbench": "true"},
	}

	createResp, err := cli.ContainerCreate(ctx, client.ContainerCreateOptions{
		Config:     containerCfg,
		HostConfig: hostCfg,
	})
	if err != nil {
		return nil, fmt.Errorf("creating container: %w", err)
	}
	containerID := createResp.ID
	defer func() {
		cli.ContainerRemove(context.Background(), containerID, client.ContainerRemoveOptions{Force: true})
	}()

	start := time.Now()
	if _, err := cli.ContainerStart(ctx, containerID, client.ContainerStartOptions{}); err != nil {
		return nil, fmt.Errorf("starting container: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	waitResult := cli.ContainerWait(timeoutCtx, containerID, client.ContainerWaitOptions{
		Condition: container.WaitConditionNotRunning,
	})
	for {
		select {
		case err := <-waitResult.Error:
			if err != nil {
				cli.ContainerKill(context.Background(), containerID, client.ContainerKillOptions{Signal: "SIGKILL"})
				if ctx.Err() != nil && timeoutCtx.Err() != context.DeadlineExceeded {
					return nil, ctx.Err()
				}
				return &Result{
					Passed:   false,
					Log:      timeoutLog(int(req.Timeout.Seconds())),
					TimedOut: true,
					Duration: time.Since(start),
				}, nil
			}
			// nil means nothing failed on this channel; keep waiting
		case status := <-waitResult.Result:
			return &Result{
				Passed:   status.StatusCode == 0,
				Log:      containerLogs(cli, containerID),
				Duration: time.Since(start),
			}, nil
		}
	}
}

func containerLogs(cli *client.Client, containerID string) string {
	logReader, err := cli.ContainerLogs(context.Background(), containerID, client.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return ""
	}
	defer logReader.Close()
	data, _ := io.ReadAll(logReader)
	return string(data)
}
