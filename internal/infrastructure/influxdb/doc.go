// Package influxdb provides InfluxDB connectivity for the PoolDose service.
//
// It wraps the non-blocking write API of influxdb-client-go v2.
//
// # Purpose
//
// Every poll of the controller is written as one point per decoded value
// to the "pooldose_readings" measurement, tagged with device ID, logical
// name, kind and unit. Write attempts go to "pooldose_writes".
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteSnapshot(view.DeviceID(), view.Structured(), time.Now())
//
// Points are batched and sent in the background; failed batches reach the
// SetOnError callback wrapped in ErrWriteFailed. Close flushes what is
// still buffered.
package influxdb
