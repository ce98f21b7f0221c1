package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/RyanBlaney/sonido-timbre/timbre/knn"
	"github.com/RyanBlaney/sonido-timbre/timbre/pipeline"
)

const commandHelp = `commands:
  train <class>   train every following onset as class
  classify        stop training and classify onsets, regrouping
                  into the configured cluster count when set
  cluster <n>     group the trained classes into n clusters
  uncluster       report classes again
  forget <class>  remove a class from the model
  clear           remove all training data
  k <n>           set the number of neighbours
  metric <name>   euclidean, manhattan, correlation or cosine
  status          show the model state`

// controller applies text commands to a running listen session
type controller struct {
	worker     *pipeline.Worker
	classifier *knn.Classifier

	// clusters regroups the trained classes whenever training stops, 0 disables
	clusters int
}

func (c *controller) apply(line string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}

	arg := func() (int, error) {
		if len(fields) != 2 {
			return 0, fmt.Errorf("%s takes one number", fields[0])
		}
		return strconv.Atoi(fields[1])
	}

	switch strings.ToLower(fields[0]) {
	case "train":
		class, err := arg()
		if err != nil {
			return "", err
		}
		if class < 0 {
			return "", fmt.Errorf("%w: %d", knn.ErrInvalidClass, class)
		}
		c.worker.Arm(class)
		return fmt.Sprintf("training class %d", class), nil

	case "classify":
		c.worker.Disarm()
		if c.clusters > 0 && len(c.classifier.Classes()) >= c.clusters {
			if err := c.classifier.Cluster(c.clusters); err != nil {
				return "", err
			}
			return fmt.Sprintf("classifying into %d clusters", c.clusters), nil
		}
		return "classifying", nil

	case "cluster":
		n, err := arg()
		if err != nil {
			return "", err
		}
		if err := c.classifier.Cluster(n); err != nil {
			return "", err
		}
		return fmt.Sprintf("%d clusters", n), nil

	case "uncluster":
		c.classifier.Uncluster()
		return "clusters removed", nil

	case "forget":
		class, err := arg()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("removed %d instances", c.classifier.Forget(class)), nil

	case "clear":
		c.classifier.Clear()
		return "model cleared", nil

	case "k":
		k, err := arg()
		if err != nil {
			return "", err
		}
		if err := c.classifier.SetK(k); err != nil {
			return "", err
		}
		return fmt.Sprintf("k = %d", k), nil

	case "metric":
		if len(fields) != 2 {
			return "", fmt.Errorf("metric takes one name")
		}
		m, err := knn.ParseMetric(fields[1])
		if err != nil {
			return "", err
		}
		c.classifier.SetMetric(m)
		return fmt.Sprintf("metric = %s", m), nil

	case "status":
		return fmt.Sprintf("%d instances, classes %v, clustered %t, metric %s",
			c.classifier.Len(), c.classifier.Classes(), c.classifier.Clustered(), c.classifier.Metric()), nil

	case "help":
		return commandHelp, nil

	default:
		return "", fmt.Errorf("unknown command %q, try help", fields[0])
	}
}

// run reads commands line by line until in is exhausted or ctx is done
func (c *controller) run(ctx context.Context, in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		reply, err := c.apply(scanner.Text())
		switch {
		case err != nil:
			fmt.Fprintf(out, "error: %v\n", err)
		case reply != "":
			fmt.Fprintln(out, reply)
		}
	}
}
