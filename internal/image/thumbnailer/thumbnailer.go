package thumbnailer

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"math"

	"github.com/DMarby/thumbs/internal/image"
	"github.com/DMarby/thumbs/internal/logger"
	"github.com/DMarby/thumbs/internal/queue"
	"github.com/DMarby/thumbs/internal/storage"
	"github.com/DMarby/thumbs/internal/tracing"
)

// Processor is an image processor that renders thumbnails on a pool of workers
type Processor struct {
	queue  *queue.Queue[*image.Task, []byte]
	tracer *tracing.Tracer
}

var (
	queueSize       = expvar.NewInt("gauge_image_processor_queue_size")
	processedImages = expvar.NewMap("counter_labelmap_dimensions_image_processor_processed_images")
)

// New initializes a new processor instance, whose workers stop when ctx is canceled
func New(ctx context.Context, log *logger.Logger, tracer *tracing.Tracer, workers int, storageProvider storage.Provider) (*Processor, error) {
	if workers <= 0 {
		return nil, fmt.Errorf("invalid worker count %d", workers)
	}

	workerQueue := queue.New(ctx, workers, taskProcessor(tracer, storageProvider))
	instance := &Processor{
		queue:  workerQueue,
		tracer: tracer,
	}

	go workerQueue.Run()
	log.Infof("starting thumbnail worker queue with %d workers", workers)

	return instance, nil
}

// ProcessImage loads the source image of a task, renders the thumbnail, and returns a buffer containing it as a PNG
func (p *Processor) ProcessImage(ctx context.Context, task *image.Task) (processedImage []byte, err error) {
	ctx, span := p.tracer.Start(ctx, "thumbnailer.Processor.ProcessImage")
	defer span.End()

	queueSize.Add(1)
	defer queueSize.Add(-1)

	defer processedImages.Add(fmt.Sprintf("%0.f", math.Max(math.Round(float64(task.Width)/100)*100, math.Round(float64(task.Height)/100)*100)), 1)

	result, err := p.queue.Process(ctx, task)
	if err != nil {
		if errors.Is(err, queue.ErrShutdown) || errors.Is(err, queue.ErrTaskPanicked) {
			return nil, fmt.Errorf("%w: %s", image.ErrWorkContext, err)
		}

		return nil, err
	}

	return result, nil
}

func taskProcessor(tracer *tracing.Tracer, storageProvider storage.Provider) queue.HandlerFunc[*image.Task, []byte] {
	return func(ctx context.Context, task *image.Task) ([]byte, error) {
		ctx, span := tracer.Start(ctx, "thumbnailer.render")
		defer span.End()

		return render(ctx, storageProvider, task)
	}
}
