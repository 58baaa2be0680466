package features

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"
)

type trainingRecord struct {
	RaceKey            string   `parquet:"name=race_key, type=BYTE_ARRAY, convertedtype=UTF8"`
	EntryKey           string   `parquet:"name=entry_key, type=BYTE_ARRAY, convertedtype=UTF8"`
	HorseID            string   `parquet:"name=horse_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	HorseNo            int32    `parquet:"name=horse_no, type=INT32"`
	Date               string   `parquet:"name=yyyymmdd, type=BYTE_ARRAY, convertedtype=UTF8"`
	CourseCode         string   `parquet:"name=course_code, type=BYTE_ARRAY, convertedtype=UTF8"`
	GradeCode          *string  `parquet:"name=grade_code, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	JockeyCode         *string  `parquet:"name=jockey_code, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	TrainerCode        *string  `parquet:"name=trainer_code, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	BodyWeight         *int32   `parquet:"name=body_weight, type=INT32, repetitiontype=OPTIONAL"`
	HandicapWeightX10  *int32   `parquet:"name=handicap_weight_x10, type=INT32, repetitiontype=OPTIONAL"`
	DistanceM          *int32   `parquet:"name=distance_m, type=INT32, repetitiontype=OPTIONAL"`
	TrackCode          *string  `parquet:"name=track_code, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Surface            *string  `parquet:"name=surface, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	AvgPos1C           *float64 `parquet:"name=avg_pos_1c_last3, type=DOUBLE, repetitiontype=OPTIONAL"`
	AvgPos4C           *float64 `parquet:"name=avg_pos_4c_last3, type=DOUBLE, repetitiontype=OPTIONAL"`
	AvgGain            *float64 `parquet:"name=avg_gain_last3, type=DOUBLE, repetitiontype=OPTIONAL"`
	FrontRate          *float64 `parquet:"name=front_rate_last3, type=DOUBLE, repetitiontype=OPTIONAL"`
	AvgPos1CPct        *float64 `parquet:"name=avg_pos_1c_pct_last3, type=DOUBLE, repetitiontype=OPTIONAL"`
	AvgPos4CPct        *float64 `parquet:"name=avg_pos_4c_pct_last3, type=DOUBLE, repetitiontype=OPTIONAL"`
	NPast              *int32   `parquet:"name=n_past, type=INT32, repetitiontype=OPTIONAL"`
	BodyWeightDiff     *float64 `parquet:"name=body_weight_diff_mean, type=DOUBLE, repetitiontype=OPTIONAL"`
	HandicapWeightDiff *float64 `parquet:"name=handicap_weight_x10_diff_mean, type=DOUBLE, repetitiontype=OPTIONAL"`
	BodyWeightZ        *float64 `parquet:"name=body_weight_z, type=DOUBLE, repetitiontype=OPTIONAL"`
	HandicapWeightZ    *float64 `parquet:"name=handicap_weight_x10_z, type=DOUBLE, repetitiontype=OPTIONAL"`
	Placed             *bool    `parquet:"name=is_place, type=BOOLEAN, repetitiontype=OPTIONAL"`
}

func toRecord(r FeatureRow) trainingRecord {
	return trainingRecord{
		RaceKey:            r.RaceKey,
		EntryKey:           r.EntryKey,
		HorseID:            r.HorseID,
		HorseNo:            int32(r.HorseNo),
		Date:               r.Date,
		CourseCode:         r.CourseCode,
		GradeCode:          r.GradeCode,
		JockeyCode:         r.JockeyCode,
		TrainerCode:        r.TrainerCode,
		BodyWeight:         int32Ptr(r.BodyWeight),
		HandicapWeightX10:  int32Ptr(r.HandicapWeightX10),
		DistanceM:          int32Ptr(r.DistanceM),
		TrackCode:          r.TrackCode,
		Surface:            r.Surface,
		AvgPos1C:           r.AvgPos1C,
		AvgPos4C:           r.AvgPos4C,
		AvgGain:            r.AvgGain,
		FrontRate:          r.FrontRate,
		AvgPos1CPct:        r.AvgPos1CPct,
		AvgPos4CPct:        r.AvgPos4CPct,
		NPast:              int32Ptr(r.NPast),
		BodyWeightDiff:     r.BodyWeightDiff,
		HandicapWeightDiff: r.HandicapWeightDiff,
		BodyWeightZ:        r.BodyWeightZ,
		HandicapWeightZ:    r.HandicapWeightZ,
		Placed:             r.Placed,
	}
}

func int32Ptr(v *int) *int32 {
	if v == nil {
		return nil
	}
	i := int32(*v)
	return &i
}

type memFile struct {
	buffer *bytes.Buffer
}

func newMemFile() *memFile {
	return &memFile{buffer: &bytes.Buffer{}}
}

func (m *memFile) Create(string) (source.ParquetFile, error) { return m, nil }
func (m *memFile) Open(string) (source.ParquetFile, error)   { return m, nil }
func (m *memFile) Seek(int64, int) (int64, error)            { return int64(m.buffer.Len()), nil }
func (m *memFile) Read([]byte) (int, error)                  { return 0, fmt.Errorf("read not supported") }
func (m *memFile) Write(b []byte) (int, error)               { return m.buffer.Write(b) }
func (m *memFile) Close() error                              { return nil }

// ExportParquet writes rows as a snappy-compressed parquet file to w and
// returns the number of bytes written.
func ExportParquet(rows []FeatureRow, w io.Writer) (int64, error) {
	mem := newMemFile()
	pw, err := writer.NewParquetWriter(mem, new(trainingRecord), 1)
	if err != nil {
		return 0, fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, r := range rows {
		if err := pw.Write(toRecord(r)); err != nil {
			_ = pw.WriteStop()
			return 0, fmt.Errorf("failed to write training row %s: %w", r.EntryKey, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return 0, fmt.Errorf("failed to finalize parquet: %w", err)
	}
	return io.Copy(w, mem.buffer)
}

// LabelledOnly drops rows without a known place outcome or without both weights
func LabelledOnly(rows []FeatureRow) []FeatureRow {
	out := make([]FeatureRow, 0, len(rows))
	for _, r := range rows {
		if r.Placed != nil && r.BodyWeight != nil && r.HandicapWeightX10 != nil {
			out = append(out, r)
		}
	}
	return out
}

// objectPutter is the part of the S3 client used for uploads
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader pushes exported files to a bucket prefix
type S3Uploader struct {
	client objectPutter
	bucket string
	prefix string
}

// NewS3Uploader builds an uploader from the default AWS credential chain
func NewS3Uploader(ctx context.Context, region, bucket, prefix string) (*S3Uploader, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &S3Uploader{client: s3.NewFromConfig(awsCfg), bucket: bucket, prefix: prefix}, nil
}

// ObjectKey returns the key a file name is uploaded under
func (u *S3Uploader) ObjectKey(name string, now time.Time) string {
	return path.Join(u.prefix, now.UTC().Format("2006/01/02"), name)
}

// Upload puts data under the dated object key and returns the key
func (u *S3Uploader) Upload(ctx context.Context, name string, data []byte) (string, error) {
	key := u.ObjectKey(name, time.Now())
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload s3://%s/%s: %w", u.bucket, key, err)
	}
	return key, nil
}
