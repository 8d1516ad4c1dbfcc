package main

import (
	"context"
	"log"
	"time"

	"github.com/hydronote/groundwatch/internal/metrics"
	"github.com/hydronote/groundwatch/internal/store"
	"github.com/hydronote/groundwatch/internal/task"
)

func startMetricsCollector(st *store.Store) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		updateTaskMetrics(st)
	}
}

func updateTaskMetrics(st *store.Store) {
	tasks, err := st.AllTasks(context.Background())
	if err != nil {
		log.Printf("Failed to get tasks for metrics: %v", err)
		return
	}

	tasksByStatus := make(map[task.Status]map[task.Kind]int)
	for _, t := range tasks {
		if tasksByStatus[t.Status] == nil {
			tasksByStatus[t.Status] = make(map[task.Kind]int)
		}
		tasksByStatus[t.Status][t.Kind]++
	}

	metrics.UpdateTaskGauges(tasksByStatus)
}
